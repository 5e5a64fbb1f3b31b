/*
Package resilience provides the circuit breaker guarding calls to the M.A.X. API.

# States

- Closed: requests pass through and failures are counted
- Open: requests fail immediately with ErrCircuitOpen
- Half-Open: a limited number of probes decide whether to close again

	Closed --[ReadyToTrip]-> Open --[Timeout]-> Half-Open --[MaxRequests successes]-> Closed
	                                               |
	                                           [failure] -> Open

# Usage

	breaker := resilience.New("max-api", resilience.Settings{
		Timeout:      30 * time.Second,
		ReadyToTrip:  func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 5 },
		IsSuccessful: func(err error) bool { return err == nil || isClientError(err) },
	})

	resp, err := resilience.Call(breaker, func() (*resty.Response, error) {
		return req.Post(url)
	})

Timing goes through the clock package, so tests advance a fake clock instead
of sleeping.
*/
package resilience
