package env

import "webAgent/internal/marker"

// Observation собирается контроллером один раз за цикл и дальше не меняется.
type Observation struct {
	URL        string
	Error      string
	Screenshot []byte
	Registry   *marker.Registry
	State      Snapshot
}

func (o *Observation) Done() bool {
	return o.State.Done()
}
