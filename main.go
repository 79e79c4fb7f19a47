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

package main

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"perun.network/go-perun/log"
	plogrus "perun.network/go-perun/log/logrus"

	"perun.network/perun-nitro-engine/client"
	"perun.network/perun-nitro-engine/engine"
	"perun.network/perun-nitro-engine/payment"
	"perun.network/perun-nitro-engine/store"
	"perun.network/perun-nitro-engine/wallet"
)

var chainID = big.NewInt(1337)

type node struct {
	engine *engine.Engine
	client *payment.PaymentClient
}

func setupNode(cfg engine.Config, name string, w *wallet.EphemeralWallet, rng *rand.Rand, sim *client.SimChain, bus *engine.LocalBus, clk clock.Clock) (*node, error) {
	acc, err := w.AddNewAccount(rng)
	if err != nil {
		return nil, err
	}
	decode := store.DecoderFromHandlers(engine.Handlers())
	var st store.Store = store.NewMemStore(decode)
	if cfg.DBPath != "" {
		bolt, err := store.OpenBoltStore(filepath.Join(cfg.DBPath, name+".db"), decode)
		if err != nil {
			return nil, err
		}
		st = bolt
	}
	e, err := engine.New(cfg, engine.Deps{
		Signer:    acc,
		Store:     st,
		Transport: bus.Connect(name),
		Chain:     sim,
		Clock:     clk,
	})
	if err != nil {
		return nil, err
	}
	return &node{
		engine: e,
		client: payment.SetupPaymentClient(e, acc.Address(), chainID, cfg.DefaultChallengeDuration, clk),
	}, nil
}

func run(ctx context.Context, cfg engine.Config) error {
	clk := clock.NewDefaultClock()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	w := wallet.NewEphemeralWallet()
	sim := client.NewSimChain(clk)
	bus := engine.NewLocalBus()

	alice, err := setupNode(cfg, "alice", w, rng, sim, bus, clk)
	if err != nil {
		return err
	}
	bob, err := setupNode(cfg, "bob", w, rng, sim, bus, clk)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	engines, ectx := errgroup.WithContext(ctx)
	for _, n := range []*node{alice, bob} {
		n := n
		engines.Go(func() error { return n.engine.Run(ectx) })
	}

	err = pay(ctx, alice.client, bob.client)
	for _, n := range []*node{alice, bob} {
		if cerr := n.client.Shutdown(); cerr != nil && err == nil {
			err = cerr
		}
	}
	cancel()
	if werr := engines.Wait(); werr != nil && werr != context.Canceled && err == nil {
		err = werr
	}
	return err
}

func pay(ctx context.Context, alice, bob *payment.PaymentClient) error {
	accepted := make(chan *payment.PaymentChannel, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ch, err := bob.AcceptedChannel(gctx)
		accepted <- ch
		return err
	})
	aliceChannel, err := alice.OpenChannel(ctx, bob.Participant(), big.NewInt(100))
	if err != nil {
		return err
	}
	if err := g.Wait(); err != nil {
		return err
	}
	bobChannel := <-accepted
	log.Infof("Opened channel %s", aliceChannel.ID().Hex())

	if err := aliceChannel.SendPayment(ctx, big.NewInt(10)); err != nil {
		return err
	}
	if err := bobChannel.SendPayment(ctx, big.NewInt(2)); err != nil {
		return err
	}
	// Both sides must agree on who moved last before settling.
	l, err := bobChannel.GetChannel()
	if err != nil {
		return err
	}
	if err := aliceChannel.AwaitTurn(ctx, l.Latest().State.TurnNum); err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error { return aliceChannel.Settle(gctx) })
	g.Go(func() error { return bobChannel.Settle(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}

	for name, ch := range map[string]*payment.PaymentChannel{"alice": aliceChannel, "bob": bobChannel} {
		mine, _, err := ch.Balances()
		if err != nil {
			return err
		}
		fmt.Printf("%s: %v\n", name, mine)
	}
	return nil
}

func main() {
	cfg := engine.DefaultConfig()
	if _, err := flags.Parse(&cfg); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	plogrus.Set(level, &logrus.TextFormatter{})

	if err := run(context.Background(), cfg); err != nil {
		log.Errorf("Payment demo: %v", err)
		os.Exit(1)
	}
	log.Info("DONE")
}
