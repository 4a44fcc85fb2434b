package votingengine

import (
	"log/slog"
	"time"

	httpadapter "oikos/contexts/governance/voting-engine/adapters/http"
	"oikos/contexts/governance/voting-engine/adapters/memory"
	"oikos/contexts/governance/voting-engine/application/commands"
	"oikos/contexts/governance/voting-engine/application/queries"
	"oikos/contexts/governance/voting-engine/application/workers"
	"oikos/contexts/governance/voting-engine/ports"
)

type Module struct {
	Handler          httpadapter.Handler
	LifecycleSweeper workers.LifecycleSweeper
	OutboxRelay      workers.OutboxRelay
	Store            *memory.Store
}

type Dependencies struct {
	Questions   ports.QuestionRepository
	Roster      ports.RosterRepository
	Ballots     ports.BallotRepository
	Registry    ports.OwnershipRegistry
	Tallies     ports.TallyCache
	Outbox      ports.OutboxRepository
	Publisher   ports.EventPublisher
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	ResultTTL   time.Duration
	EventsTopic string
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	questionUseCase := commands.QuestionUseCase{
		Questions: deps.Questions,
		Roster:    deps.Roster,
		Registry:  deps.Registry,
		Outbox:    deps.Outbox,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	ballotUseCase := commands.BallotUseCase{
		Questions: deps.Questions,
		Roster:    deps.Roster,
		Ballots:   deps.Ballots,
		Tallies:   deps.Tallies,
		Outbox:    deps.Outbox,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	lifecycleUseCase := commands.LifecycleUseCase{
		Questions: deps.Questions,
		Tallies:   deps.Tallies,
		Outbox:    deps.Outbox,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	tallyUseCase := queries.TallyUseCase{
		Questions: deps.Questions,
		Roster:    deps.Roster,
		Ballots:   deps.Ballots,
		Clock:     deps.Clock,
	}
	resultFeed := queries.ResultFeed{
		Tally:  tallyUseCase,
		Cache:  deps.Tallies,
		Clock:  deps.Clock,
		TTL:    deps.ResultTTL,
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Questions: questionUseCase,
			Ballots:   ballotUseCase,
			Lifecycle: lifecycleUseCase,
			Results:   resultFeed,
			Tally:     tallyUseCase,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		LifecycleSweeper: workers.LifecycleSweeper{
			Questions: deps.Questions,
			Tallies:   deps.Tallies,
			Outbox:    deps.Outbox,
			Clock:     deps.Clock,
			IDGen:     deps.IDGen,
			Logger:    deps.Logger,
		},
		OutboxRelay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			Topic:     deps.EventsTopic,
			Logger:    deps.Logger,
		},
	}
}

// NewInMemoryModule wires every port to the in-memory store. Used by the
// local profile and by tests that need a fully working module without
// Postgres.
func NewInMemoryModule(publisher ports.EventPublisher, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Questions: store,
		Roster:    store,
		Ballots:   store,
		Registry:  store,
		Tallies:   store,
		Outbox:    store,
		Publisher: publisher,
		Clock:     store,
		IDGen:     store,
		Logger:    logger,
	})
	module.Store = store
	return module
}
