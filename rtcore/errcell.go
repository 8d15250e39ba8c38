package rtcore

// Thread is the per-caller context every API call runs in. It owns the
// error cell of its caller: the first error raised by a call is kept until
// GetError reads it. A Thread must only be used by one goroutine at a time;
// create one per worker with NewThread.
type Thread struct {
	cell Code
	last *Error
}

// NewThread creates a context with an empty error cell.
func NewThread() *Thread {
	return &Thread{}
}

// GetError returns the first error recorded since the previous call and
// clears the cell.
func (t *Thread) GetError() Code {
	code := t.cell
	t.cell = NoError
	t.last = nil
	return code
}

// Err returns the error stored in the cell without clearing it.
func (t *Thread) Err() error {
	if t.last == nil {
		return nil
	}
	return t.last
}

// An API call in flight. The device is attached as soon as the call
// resolves a handle so failures reach the right error callback and logger.
type apiCall struct {
	t   *Thread
	op  string
	dev *device
}

// Attach the device that owns the resources touched by the call.
func (c *apiCall) use(dev *device) {
	c.dev = dev
	if dev != nil && dev.cfg.verbose >= 2 {
		dev.logger.Debugf("%s", c.op)
	}
}

// Record a failure: log it, hand it to the device error callback and store
// the code in the thread cell if the cell is empty.
func (c *apiCall) fail(err error) {
	apiErr := asError(c.op, err)

	dev := c.dev
	if dev == nil {
		dev = legacyDevice()
	}
	if dev != nil {
		if dev.cfg.verbose >= 1 {
			dev.logger.Errorf("%s", apiErr.Error())
		}
		if fn := dev.errorFunc(); fn != nil {
			// A faulting callback must not escape the call.
			func() {
				defer func() { _ = recover() }()
				fn(apiErr.Code, apiErr.Error())
			}()
		}
	}

	if c.t.cell == NoError {
		c.t.cell = apiErr.Code
		c.t.last = apiErr
	}
}

// Run fn as the body of a public call. Returned errors and panics are
// recorded and the call yields failed instead.
func guarded[T any](t *Thread, op string, failed T, fn func(c *apiCall) (T, error)) (out T) {
	c := &apiCall{t: t, op: op}
	defer func() {
		if r := recover(); r != nil {
			c.fail(panicError(r))
			out = failed
		}
	}()

	v, err := fn(c)
	if err != nil {
		c.fail(err)
		return failed
	}
	return v
}

// Run a public call that returns nothing.
func do(t *Thread, op string, fn func(c *apiCall) error) {
	guarded(t, op, struct{}{}, func(c *apiCall) (struct{}, error) {
		return struct{}{}, fn(c)
	})
}

// Run fn and convert a panic into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return fn()
}
