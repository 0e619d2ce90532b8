package orchestrator

// Observer receives lifecycle callbacks as stages move through the run.
type Observer interface {
	StageStarted(name string, st StageState)
	StageFinished(res Result)
}

type nopObserver struct{}

func (nopObserver) StageStarted(string, StageState) {}
func (nopObserver) StageFinished(Result)            {}

// Observers fans callbacks out to several observers.
type Observers []Observer

func (o Observers) StageStarted(name string, st StageState) {
	for _, obs := range o {
		obs.StageStarted(name, st)
	}
}

func (o Observers) StageFinished(res Result) {
	for _, obs := range o {
		obs.StageFinished(res)
	}
}
