package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dmquizhpe/ventia/agent/classify"
	contractx "github.com/dmquizhpe/ventia/agent/contract"
	"github.com/dmquizhpe/ventia/agent/handlers"
	llmx "github.com/dmquizhpe/ventia/agent/llm"
	orchestratorx "github.com/dmquizhpe/ventia/agent/orchestrator"
	statex "github.com/dmquizhpe/ventia/agent/state"
	"github.com/dmquizhpe/ventia/inventory"
	"github.com/dmquizhpe/ventia/orders"
	configx "github.com/dmquizhpe/ventia/pkg/config"
	_ "github.com/dmquizhpe/ventia/pkg/logger/autoload"
	openrouterx "github.com/dmquizhpe/ventia/pkg/openrouter"
	postgresx "github.com/dmquizhpe/ventia/pkg/postgres"
	qstashx "github.com/dmquizhpe/ventia/pkg/qstash"
)

type AppConfig struct {
	PurchaserID string `envconfig:"PURCHASER_ID"`
	RedisURL    string `envconfig:"UPSTASH_REDIS_URL"`
	RedisToken  string `envconfig:"UPSTASH_REDIS_TOKEN"`
	QStashURL   string `envconfig:"QSTASH_URL"`
	QStashToken string `envconfig:"QSTASH_TOKEN"`
}

func main() {
	ctx := context.Background()
	appCfg := configx.MustNew[AppConfig]("")

	pgCfg := configx.MustNew[postgresx.Config]("POSTGRES")
	db := postgresx.MustConnect(ctx, *pgCfg)
	defer db.Close()

	catalog := inventory.NewStore(db)

	var orderOpts []orders.ServiceOption
	if appCfg.QStashURL != "" && appCfg.QStashToken != "" {
		publisher := qstashx.MustNew(qstashx.Config{URL: appCfg.QStashURL, Token: appCfg.QStashToken})
		orderOpts = append(orderOpts, orders.WithEvents(publisher))
	}
	orderService := orders.NewService(db, orderOpts...)

	store := newSessionStore(appCfg)

	openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
	client := openrouterx.NewClient(*openRouterCfg)
	if client == nil {
		log.Fatal().Msg("openrouter api key is required")
	}
	gateway := llmx.NewGateway(client, *openRouterCfg)

	intents := classify.NewIntentChain(
		classify.NewModelIntent(gateway.Once()),
		classify.NewKeywordIntent(),
	)
	styles := classify.NewStyleChain(
		classify.NewPatternStyle(),
	)

	orchestrator, err := orchestratorx.New(
		store,
		[]contractx.Handler{
			handlers.NewRetriever(catalog),
			handlers.NewAdvisor(gateway),
			handlers.NewCheckout(catalog, orderService),
		},
		intents,
		styles,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build orchestrator")
	}

	runChat(ctx, orchestrator, appCfg.PurchaserID)
}

func newSessionStore(cfg *AppConfig) statex.Store {
	if cfg.RedisURL == "" || cfg.RedisToken == "" {
		log.Warn().Msg("no redis configured, sessions are in-memory only")
		return statex.NewMemoryStore()
	}

	store, err := statex.NewUpstashRedisStore(statex.UpstashRedisConfig{
		URL:   cfg.RedisURL,
		Token: cfg.RedisToken,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build session store")
	}
	return store
}

func runChat(ctx context.Context, o *orchestratorx.Orchestrator, purchaserID string) {
	sessionID := uuid.NewString()
	fmt.Printf("Ventia lista. Sesión %s (escribe 'salir' para terminar)\n\n", sessionID[:8])

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("tú> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "salir") {
			break
		}

		result, err := o.ProcessTurn(ctx, contractx.TurnRequest{
			SessionID:   sessionID,
			PurchaserID: purchaserID,
			Query:       line,
		})
		if err != nil {
			log.Error().Err(err).Msg("turn failed")
			fmt.Println("alex> Lo siento, algo salió mal. Intenta de nuevo.")
			continue
		}

		fmt.Printf("alex> %s\n\n", result.Message)
	}
}
