package main

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	promptx "github.com/sivanlv/pharmassist/agent/prompt"
	runnerx "github.com/sivanlv/pharmassist/agent/runner"
	toolx "github.com/sivanlv/pharmassist/agent/tool"
	"github.com/sivanlv/pharmassist/pharmacy"
	configx "github.com/sivanlv/pharmassist/pkg/config"
	logx "github.com/sivanlv/pharmassist/pkg/logger"
	openrouterx "github.com/sivanlv/pharmassist/pkg/openrouter"
	serverx "github.com/sivanlv/pharmassist/server"
	storex "github.com/sivanlv/pharmassist/store"
)

type AppConfig struct {
	ListenAddr    string `envconfig:"LISTEN_ADDR" split_words:"true" default:":8000"`
	DataDir       string `envconfig:"DATA_DIR" split_words:"true" default:"data"`
	StoreDriver   string `envconfig:"STORE_DRIVER" split_words:"true" default:"file"`
	PostgresDSN   string `envconfig:"POSTGRES_DSN" split_words:"true"`
	MaxToolRounds int    `envconfig:"MAX_TOOL_ROUNDS" split_words:"true" default:"8"`
	HistoryWindow int    `envconfig:"HISTORY_WINDOW" split_words:"true" default:"20"`
}

func main() {
	logCfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*logCfg)

	appCfg := configx.MustNew[AppConfig]("APP")
	orCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")

	ctx := context.Background()

	recordStore := newRecordStore(ctx, appCfg)
	svc := pharmacy.NewService(recordStore)

	if client := openrouterx.NewClient(*orCfg); client != nil {
		if err := openrouterx.Ping(ctx, client); err != nil {
			log.Warn().Err(err).Msg("openrouter connectivity check failed; continuing")
		}
	}

	chatModel, err := orCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build chat model")
	}

	infos, exec := toolx.Build(svc)
	run, err := runnerx.New(chatModel, infos, exec, promptx.Pharmacist(), runnerx.Config{
		MaxToolRounds: appCfg.MaxToolRounds,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build turn runner")
	}

	srv := serverx.New(run, serverx.Config{HistoryWindow: appCfg.HistoryWindow})

	log.Info().
		Str("addr", appCfg.ListenAddr).
		Str("store", appCfg.StoreDriver).
		Str("model", orCfg.Model).
		Msg("pharmassist listening")
	if err := http.ListenAndServe(appCfg.ListenAddr, srv.Router()); err != nil {
		log.Fatal().Err(err).Msg("http server stopped")
	}
}

func newRecordStore(ctx context.Context, cfg *AppConfig) pharmacy.Store {
	switch cfg.StoreDriver {
	case "postgres":
		pg, err := storex.NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open postgres record store")
		}
		seedPostgres(ctx, pg, cfg.DataDir)
		return pg
	default:
		return storex.NewFile(cfg.DataDir)
	}
}

// seedPostgres copies the file fixtures into postgres when the medications
// collection is missing, so a fresh database starts with the catalog.
func seedPostgres(ctx context.Context, pg *storex.Postgres, dataDir string) {
	meds, err := pg.LoadMedications(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read medications collection")
	}
	if len(meds) > 0 {
		return
	}

	file := storex.NewFile(dataDir)
	seedMeds, err := file.LoadMedications(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read seed medications")
	}
	inventory, err := file.LoadInventory(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read seed inventory")
	}
	users, err := file.LoadUsers(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read seed users")
	}

	if err := pg.SeedMedications(ctx, seedMeds); err != nil {
		log.Fatal().Err(err).Msg("failed to seed medications")
	}
	if err := pg.SaveInventory(ctx, inventory); err != nil {
		log.Fatal().Err(err).Msg("failed to seed inventory")
	}
	if err := pg.SaveUsers(ctx, users); err != nil {
		log.Fatal().Err(err).Msg("failed to seed users")
	}
	log.Info().Int("medications", len(seedMeds)).Msg("seeded postgres record store")
}
