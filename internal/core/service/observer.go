package service

// Observer receives device and control events, typically for metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	// ObserveRead records a completed read of n bytes on device dev.
	ObserveRead(dev, n int)
	// ObserveWrite records a write attempt of n bytes on device dev.
	ObserveWrite(dev, n int, err error)
	// ObserveTrim records a trim of device dev.
	ObserveTrim(dev int)
	// ObserveInterrupted records an abandoned lock wait on device dev.
	ObserveInterrupted(dev int)
	// ObserveControl records a control command and its outcome.
	ObserveControl(name string, err error)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) ObserveRead(int, int) {}
func (NopObserver) ObserveWrite(int, int, error) {}
func (NopObserver) ObserveTrim(int) {}
func (NopObserver) ObserveInterrupted(int) {}
func (NopObserver) ObserveControl(string, error) {}
