// Copyright 2025 PolyCrypt GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package engine hosts the protocol objectives of one participant. It routes
// peer messages, chain events and user decisions to the objectives, persists
// every change and executes the actions the objectives request.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"perun.network/go-perun/log"
	pkgsync "polycry.pt/poly-go/sync"

	"perun.network/perun-nitro-engine/chain"
	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/client"
	"perun.network/perun-nitro-engine/event"
	"perun.network/perun-nitro-engine/protocol"
	"perun.network/perun-nitro-engine/protocol/directfund"
	"perun.network/perun-nitro-engine/protocol/dispute"
	"perun.network/perun-nitro-engine/protocol/ledgerfund"
	"perun.network/perun-nitro-engine/protocol/virtualfund"
	"perun.network/perun-nitro-engine/store"
	"perun.network/perun-nitro-engine/wire"
)

var (
	ErrClosed           = errors.New("engine closed")
	ErrUnknownProtocol  = errors.New("unknown protocol")
	ErrUnknownChannel   = errors.New("unknown channel")
	ErrNotParticipant   = errors.New("signer is not a participant")
	ErrNoLedger         = errors.New("no ledger channel with the counterparties")
	ErrChannelClosed    = errors.New("channel is closed")
	ErrNotFinal         = errors.New("supported state is not final")
	ErrObjectiveRunning = errors.New("objective already running")
)

// Handlers returns the dispatch table of every protocol the engine runs.
func Handlers() map[protocol.Type]protocol.Handler {
	return map[protocol.Type]protocol.Handler{
		protocol.TypeDirectFund:  directfund.Handler(),
		protocol.TypeLedgerFund:  ledgerfund.Handler(),
		protocol.TypeVirtualFund: virtualfund.Handler(),
		protocol.TypeChallenger:  dispute.ChallengerHandler(),
		protocol.TypeResponder:   dispute.ResponderHandler(),
	}
}

// Deps are the collaborators of an engine. Clock and Registerer are
// optional.
type Deps struct {
	Signer     channel.Signer
	Store      store.Store
	Transport  Transport
	Chain      client.Client
	Clock      clock.Clock
	Registerer prometheus.Registerer
}

// Engine runs the objectives of the participant signing with Deps.Signer.
type Engine struct {
	cfg       Config
	signer    channel.Signer
	handlers  map[protocol.Type]protocol.Handler
	store     store.Store
	transport Transport
	funder    *chain.Funder
	adj       *chain.Adjudicator
	watcher   *chain.Watcher
	clock     clock.Clock
	metrics   *Metrics

	mu     pkgsync.Mutex
	actors map[channel.ID]*actor
	// routes lists, per channel, the objectives reading its events.
	routes map[channel.ID]map[protocol.ObjectiveID]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closer pkgsync.Closer
	log    log.Embedding
}

// New creates an engine and resumes the channels and objectives found in
// the store.
func New(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Signer == nil:
		return nil, errors.New("signer required")
	case deps.Store == nil:
		return nil, errors.New("store required")
	case deps.Transport == nil:
		return nil, errors.New("transport required")
	case deps.Chain == nil:
		return nil, errors.New("chain client required")
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	cb := client.NewContractBackend(deps.Chain, deps.Signer)
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:       cfg,
		signer:    deps.Signer,
		handlers:  Handlers(),
		store:     deps.Store,
		transport: deps.Transport,
		funder:    chain.NewFunder(cb, clk).WithPolling(cfg.MaxIterationsUntilAbort, cfg.PollingInterval),
		adj:       chain.NewAdjudicator(cb, clk),
		watcher:   chain.NewWatcher(deps.Chain, clk, cfg.PollingInterval),
		clock:     clk,
		metrics:   NewMetrics(deps.Registerer),
		actors:    make(map[channel.ID]*actor),
		routes:    make(map[channel.ID]map[protocol.ObjectiveID]struct{}),
		ctx:       ctx,
		cancel:    cancel,
		log: log.MakeEmbedding(log.WithFields(log.Fields{
			"participant": deps.Transport.ID(),
			"signer":      deps.Signer.Address().Hex(),
		})),
	}
	if err := e.restore(); err != nil {
		cancel()
		return nil, errors.WithMessage(err, "restoring engine state")
	}
	return e, nil
}

// restore loads every stored channel into its actor and resumes the
// objectives that did not terminate.
func (e *Engine) restore() error {
	ledgers, err := e.store.Channels()
	if err != nil {
		return err
	}
	for _, l := range ledgers {
		if _, err := e.actor(l.ID()); err != nil {
			return err
		}
		if !l.Closed() {
			e.watcher.Watch(l.ID())
		}
	}

	objectives, err := e.store.Objectives()
	if err != nil {
		return err
	}
	resumed := 0
	for _, o := range objectives {
		if o.Terminal() {
			continue
		}
		var redo []protocol.Action
		if r, ok := o.(protocol.Resumer); ok {
			o, redo = r.Resume()
		}
		o := o
		e.route(o)
		err := e.post(owner(o), func(a *actor) {
			a.objectives[o.ID()] = o
			e.metrics.Objectives.Inc()
			e.execute(o, redo)
			e.crank(a, o.ID(), event.Nudge{Channel: a.id, Now: e.clock.Now()})
		})
		if err != nil {
			return err
		}
		resumed++
	}
	e.log.Log().Infof("Restored %d channels and %d objectives", len(ledgers), resumed)
	return nil
}

// Run processes peer messages, chain events and timeouts until ctx is done
// or the engine is closed.
func (e *Engine) Run(ctx context.Context) error {
	if e.closer.IsClosed() {
		return ErrClosed
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.watcher.Run(ctx)
	})
	g.Go(func() error {
		e.receiveLoop(ctx)
		return nil
	})
	g.Go(func() error {
		e.chainLoop(ctx)
		return nil
	})
	g.Go(func() error {
		e.nudgeLoop(ctx)
		return nil
	})
	return g.Wait()
}

func (e *Engine) receiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.closer.Closed():
			return
		case msg, ok := <-e.transport.Receive():
			if !ok {
				return
			}
			e.receive(msg)
		}
	}
}

func (e *Engine) chainLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.closer.Closed():
			return
		case ev, ok := <-e.watcher.Events():
			if !ok {
				return
			}
			e.chainEvent(ev)
		}
	}
}

func (e *Engine) nudgeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.closer.Closed():
			return
		case now := <-e.clock.TickAfter(e.cfg.NudgeInterval):
			e.nudgeAll(now)
		}
	}
}

// nudgeAll lets every running objective check its timeouts.
func (e *Engine) nudgeAll(now time.Time) {
	for _, a := range e.allActors() {
		_ = a.post(func(a *actor) {
			for _, id := range a.running() {
				e.crank(a, id, event.Nudge{Channel: a.id, Now: now})
			}
		})
	}
}

// Close stops the engine. The store and the transport are left open.
func (e *Engine) Close() error {
	if err := e.closer.Close(); err != nil {
		return err
	}
	e.cancel()
	e.wg.Wait()
	return e.watcher.Close()
}

// ID is the participant id the engine receives messages for.
func (e *Engine) ID() string {
	return e.transport.ID()
}

// Metrics returns the collectors of the engine.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Objective returns the stored objective id.
func (e *Engine) Objective(id protocol.ObjectiveID) (fn.Option[protocol.Objective], error) {
	return e.store.GetObjective(id)
}

// Channels returns every stored ledger.
func (e *Engine) Channels() ([]channel.Ledger, error) {
	return e.store.Channels()
}

// Channel returns the stored ledger of id.
func (e *Engine) Channel(id channel.ID) (fn.Option[channel.Ledger], error) {
	return e.store.GetChannel(id)
}

func (e *Engine) deadline() time.Time {
	if e.cfg.MaxFundingWait == 0 {
		return time.Time{}
	}
	return e.clock.Now().Add(e.cfg.MaxFundingWait)
}

// FundDirect opens and funds the channel of opening on chain and proposes
// the funding to the other participants.
func (e *Engine) FundDirect(ctx context.Context, opening channel.State) (protocol.ObjectiveID, error) {
	myIndex := opening.IndexOf(e.signer.Address())
	if myIndex < 0 {
		return "", ErrNotParticipant
	}
	o, err := directfund.New(opening, myIndex, e.deadline())
	if err != nil {
		return "", err
	}
	return o.ID(), e.launch(ctx, o)
}

// FundLedger funds target from the existing ledger channel.
func (e *Engine) FundLedger(ctx context.Context, target, ledger channel.ID, deductions channel.Allocation) (protocol.ObjectiveID, error) {
	var o ledgerfund.Objective
	err := e.ask(ctx, ledger, func(a *actor) error {
		l, err := a.ledger.UnwrapOrErr(errors.WithMessage(ErrUnknownChannel, ledger.Hex()))
		if err != nil {
			return err
		}
		supported, err := l.SupportedState().UnwrapOrErr(errors.New("ledger has no supported state"))
		if err != nil {
			return err
		}
		o, err = ledgerfund.New(target, supported, l.MyIndex(), deductions, e.deadline())
		return err
	})
	if err != nil {
		return "", err
	}
	return o.ID(), e.launch(ctx, o)
}

// FundNewLedger funds target from a new ledger channel opened by opening.
func (e *Engine) FundNewLedger(ctx context.Context, target channel.ID, opening channel.State, deductions channel.Allocation) (protocol.ObjectiveID, error) {
	myIndex := opening.IndexOf(e.signer.Address())
	if myIndex < 0 {
		return "", ErrNotParticipant
	}
	o, err := ledgerfund.NewLedgerFunding(target, opening, myIndex, deductions, e.deadline())
	if err != nil {
		return "", err
	}
	return o.ID(), e.launch(ctx, o)
}

// FundVirtual funds target through hub. A zero ledger selects the funded
// ledger channel with hub.
func (e *Engine) FundVirtual(ctx context.Context, target channel.State, hub channel.Participant, ledger channel.ID) (protocol.ObjectiveID, error) {
	myIndex := target.IndexOf(e.signer.Address())
	if myIndex < 0 {
		return "", ErrNotParticipant
	}
	o, err := virtualfund.New(target, myIndex, hub, ledger)
	if err != nil {
		return "", err
	}
	return o.ID(), e.launch(ctx, o)
}

// Challenge starts a challenge of id. It is registered once the user
// delivers ChallengeApproved.
func (e *Engine) Challenge(ctx context.Context, id channel.ID) (protocol.ObjectiveID, error) {
	oid := protocol.MakeObjectiveID(protocol.TypeChallenger, id)
	err := e.ask(ctx, id, func(a *actor) error {
		c := dispute.NewChallenger(id, a.ledger)
		e.route(c)
		if !e.start(a, c, false) {
			return errors.WithMessage(ErrObjectiveRunning, string(oid))
		}
		return nil
	})
	return oid, err
}

// launch starts o on its owning actor and proposes it to the peers.
func (e *Engine) launch(ctx context.Context, o protocol.Objective) error {
	e.route(o)
	return e.ask(ctx, owner(o), func(a *actor) error {
		if !e.start(a, o, true) {
			return errors.WithMessage(ErrObjectiveRunning, string(o.ID()))
		}
		return nil
	})
}

// Deliver hands a user decision to the addressed objective.
func (e *Engine) Deliver(env protocol.Envelope) error {
	h, ok := e.handlers[env.Protocol]
	if !ok {
		return errors.WithMessage(ErrUnknownProtocol, string(env.Protocol))
	}
	t, id, err := env.Objective.Split()
	if err != nil {
		return err
	}
	if t != env.Protocol {
		return errors.Errorf("objective %s is not a %s objective", env.Objective, env.Protocol)
	}
	if !h.Accepts.Contains(env.Event.GetType()) {
		return errors.WithMessagef(protocol.ErrUnexpectedEvent, "%v delivered to %s", env.Event.GetType(), t)
	}
	return e.tell(id, func(a *actor) {
		e.crank(a, env.Objective, env.Event)
	})
}

// Move signs s as our next turn of its channel and sends it to the peers.
func (e *Engine) Move(ctx context.Context, s channel.State) (channel.SignedState, error) {
	var ss channel.SignedState
	err := e.ask(ctx, s.ChannelID(), func(a *actor) error {
		l, err := a.ledger.UnwrapOrErr(errors.WithMessage(ErrUnknownChannel, s.ChannelID().Hex()))
		if err != nil {
			return err
		}
		if l.Closed() {
			return ErrChannelClosed
		}
		entry, err := channel.SignState(s, e.signer)
		if err != nil {
			return err
		}
		ss = channel.SignedState{State: s.Clone(), Signatures: []channel.SignatureEntry{entry}}
		next, err := l.TryAppend(ss)
		if err != nil {
			return err
		}
		if err := e.putLedger(a, next); err != nil {
			return err
		}
		e.send(protocol.SendTo(l.Constants(), l.MyIndex(), ss))
		return nil
	})
	return ss, err
}

// Sync asks peer for its retained states of id.
func (e *Engine) Sync(ctx context.Context, id channel.ID, peer string) error {
	return e.transport.Send(ctx, wire.Message{
		From:     e.transport.ID(),
		To:       peer,
		Requests: []wire.ChannelRequest{{Channel: id}},
	})
}

// Checkpoint registers the supported state of id on chain, which clears a
// pending challenge on an older state.
func (e *Engine) Checkpoint(ctx context.Context, id channel.ID) (string, error) {
	ss, err := e.supported(ctx, id)
	if err != nil {
		return "", err
	}
	tx, err := e.adj.Checkpoint(ctx, ss)
	if err == nil {
		e.watcher.Poll(ctx)
	}
	return tx, err
}

// Conclude finalizes id on chain with its final supported state.
func (e *Engine) Conclude(ctx context.Context, id channel.ID) (string, error) {
	ss, err := e.supported(ctx, id)
	if err != nil {
		return "", err
	}
	if !ss.State.IsFinal {
		return "", ErrNotFinal
	}
	tx, err := e.adj.Conclude(ctx, ss)
	if err == nil {
		e.watcher.Poll(ctx)
	}
	return tx, err
}

func (e *Engine) supported(ctx context.Context, id channel.ID) (channel.SignedState, error) {
	var ss channel.SignedState
	err := e.ask(ctx, id, func(a *actor) error {
		l, err := a.ledger.UnwrapOrErr(errors.WithMessage(ErrUnknownChannel, id.Hex()))
		if err != nil {
			return err
		}
		ss, err = l.SupportedState().UnwrapOrErr(errors.New("channel has no supported state"))
		return err
	})
	return ss, err
}

// actor returns the actor of id, starting it if necessary.
func (e *Engine) actor(id channel.ID) (*actor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closer.IsClosed() {
		return nil, ErrClosed
	}
	if a, ok := e.actors[id]; ok {
		return a, nil
	}
	// TODO: evict the actors of closed channels once their objectives
	// terminated.
	l, err := e.store.GetChannel(id)
	if err != nil {
		return nil, err
	}
	a := newActor(id, l, e.cfg.MailboxSize)
	e.actors[id] = a
	e.metrics.Channels.Inc()
	go a.run(e.closer.Closed())
	return a, nil
}

func (e *Engine) allActors() []*actor {
	e.mu.Lock()
	defer e.mu.Unlock()
	actors := make([]*actor, 0, len(e.actors))
	for _, a := range e.actors {
		actors = append(actors, a)
	}
	return actors
}

// post schedules internal work on the actor of id.
func (e *Engine) post(id channel.ID, t task) error {
	a, err := e.actor(id)
	if err != nil {
		return err
	}
	return a.post(t)
}

// tell schedules external input on the actor of id. Input beyond the
// mailbox size is refused.
func (e *Engine) tell(id channel.ID, t task) error {
	a, err := e.actor(id)
	if err != nil {
		return err
	}
	err = a.tell(t)
	if errors.Is(err, ErrMailboxFull) {
		e.metrics.Dropped.WithLabelValues("mailbox_full").Inc()
	}
	return err
}

// ask runs f on the actor of id and waits for its result.
func (e *Engine) ask(ctx context.Context, id channel.ID, f func(a *actor) error) error {
	done := make(chan error, 1)
	if err := e.tell(id, func(a *actor) { done <- f(a) }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.closer.Closed():
		return ErrClosed
	}
}

// async runs f outside of any actor. f's context is canceled on Close.
func (e *Engine) async(f func(ctx context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		f(e.ctx)
	}()
}

func owner(o protocol.Objective) channel.ID {
	return o.Channels()[0]
}

// route subscribes o to the events of its channels.
func (e *Engine) route(o protocol.Objective) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range o.Channels() {
		subs, ok := e.routes[id]
		if !ok {
			subs = make(map[protocol.ObjectiveID]struct{})
			e.routes[id] = subs
		}
		subs[o.ID()] = struct{}{}
	}
}

func (e *Engine) unroute(o protocol.Objective) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range o.Channels() {
		delete(e.routes[id], o.ID())
		if len(e.routes[id]) == 0 {
			delete(e.routes, id)
		}
	}
}

// subscribers returns the objectives reading events of id.
func (e *Engine) subscribers(id channel.ID) []protocol.ObjectiveID {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]protocol.ObjectiveID, 0, len(e.routes[id]))
	for oid := range e.routes[id] {
		ids = append(ids, oid)
	}
	return ids
}
