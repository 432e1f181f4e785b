package main

import (
	"sync"
	"time"
)

// keepalive is a shared ticker fanning ticks out to per-transport ping
// pumps. Ticks that can't be delivered, because a transport is still
// busy with the previous ping, are discarded rather than queued.
type keepalive struct {
	mu      sync.Mutex // protects pingers
	pingers pingers

	tickerMu sync.Mutex // used to sync start/stop
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopped  bool
	dropped  int
}

type pingers map[*pinger]struct{}

type pinger struct {
	tick chan time.Time
}

// creates and starts a new keepalive ticker whose subscribers
// receive ping prompts
func newKeepalive(interval time.Duration) *keepalive {
	k := &keepalive{
		pingers: make(pingers),
	}

	go func() {
		k.tickerMu.Lock()
		stopped := k.stopped

		if !stopped {
			k.stopCh = make(chan struct{}, 1)
			k.ticker = time.NewTicker(interval)
		}
		k.tickerMu.Unlock()

		if !stopped {
			k.tick()
		}
	}()
	return k
}

func newPinger() *pinger {
	return &pinger{
		tick: make(chan time.Time, 1),
	}
}

// subscribe returns a pinger to which ticks will be delivered. Ticks
// that can't be delivered, because the pinger is not ready to receive,
// are discarded.
func (k *keepalive) subscribe() *pinger {
	p := newPinger()

	// Held across the insert so a concurrent stop cannot reset the map
	// between the stopped check and the registration, which would leave
	// p.tick open forever and leak its ping pump.
	k.tickerMu.Lock()
	defer k.tickerMu.Unlock()

	if k.stopped {
		close(p.tick)
		return p
	}

	k.mu.Lock()
	k.pingers[p] = struct{}{}
	k.mu.Unlock()
	return p
}

func (k *keepalive) unsubscribe(p *pinger) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.pingers[p]; !ok {
		return
	}
	close(p.tick)
	delete(k.pingers, p)
}

// stop stops the ticker and closes all subscribed pingers.
func (k *keepalive) stop() {
	k.tickerMu.Lock()
	defer k.tickerMu.Unlock()

	if !k.stopped && k.stopCh != nil {
		k.mu.Lock()
		for p := range k.pingers {
			close(p.tick)
		}
		k.pingers = make(pingers)
		k.mu.Unlock()
		k.ticker.Stop()
		k.stopCh <- struct{}{}
	}
	k.stopped = true
}

func (k *keepalive) tick() {
	for {
		select {
		case t := <-k.ticker.C:
			k.mu.Lock()
			for p := range k.pingers {
				select {
				case p.tick <- t:
				default:
					k.dropped++
				}
			}
			k.mu.Unlock()
		case <-k.stopCh:
			return
		}
	}
}
