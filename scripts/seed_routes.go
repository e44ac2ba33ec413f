// seed_routes.go loads a YAML fixture of routes and their factor data into the
// RouteRisk database, optionally asking a running service to assess each one.
//
// Usage:
//
//	go run scripts/seed_routes.go -fixture scripts/routes.example.yaml -db postgres://localhost/routerisk
//	go run scripts/seed_routes.go -fixture scripts/routes.example.yaml -db $DB -api http://localhost:8700
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/RouteRisk/internal/risk"
	"github.com/MikeSquared-Agency/RouteRisk/internal/store"
)

type fixture struct {
	Routes []fixtureRoute `yaml:"routes"`
}

type fixtureRoute struct {
	ID           string                            `yaml:"id"`
	Name         string                            `yaml:"name"`
	Origin       string                            `yaml:"origin"`
	Destination  string                            `yaml:"destination"`
	LengthKm     float64                           `yaml:"length_km"`
	SamplePoints int                               `yaml:"sample_points"`
	Factors      map[string]map[string]interface{} `yaml:"factors"`
}

func main() {
	fixturePath := flag.String("fixture", "scripts/routes.example.yaml", "path to YAML fixture")
	dbURL := flag.String("db", os.Getenv("ROUTERISK_DATABASE_URL"), "Postgres connection URL")
	apiURL := flag.String("api", "", "RouteRisk API base URL; when set each route is assessed after seeding")
	dryRun := flag.Bool("dry-run", false, "print routes without writing")
	flag.Parse()

	data, err := os.ReadFile(*fixturePath)
	if err != nil {
		log.Fatalf("read fixture: %v", err)
	}
	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		log.Fatalf("parse fixture: %v", err)
	}
	fmt.Printf("Loaded %d routes from %s\n", len(fx.Routes), *fixturePath)

	if *dryRun {
		for _, r := range fx.Routes {
			fmt.Printf("  %s (%s -> %s, %.0f km, %d factors)\n", r.Name, r.Origin, r.Destination, r.LengthKm, len(r.Factors))
		}
		return
	}
	if *dbURL == "" {
		log.Fatal("-db or ROUTERISK_DATABASE_URL is required")
	}

	ctx := context.Background()
	db, err := store.NewPostgresStore(ctx, *dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	var seeded []uuid.UUID
	for _, fr := range fx.Routes {
		id, err := seedRoute(ctx, db, fr)
		if err != nil {
			log.Printf("  FAIL %s: %v", fr.Name, err)
			continue
		}
		seeded = append(seeded, id)
		fmt.Printf("  OK   %s -> %s\n", fr.Name, id)
	}

	if *apiURL != "" {
		client := &http.Client{Timeout: 30 * time.Second}
		for _, id := range seeded {
			resp, err := client.Post(*apiURL+"/api/v1/routes/"+id.String()+"/risk", "application/json", nil)
			if err != nil {
				log.Printf("  assess %s: %v", id, err)
				continue
			}
			var a risk.RiskAssessment
			_ = json.NewDecoder(resp.Body).Decode(&a)
			resp.Body.Close()
			fmt.Printf("  %s: %d grade=%s score=%.2f confidence=%d\n", id, resp.StatusCode, a.RiskGrade, a.TotalWeightedScore, a.ConfidenceLevel)
		}
	}

	fmt.Printf("Done: %d/%d routes seeded\n", len(seeded), len(fx.Routes))
}

func seedRoute(ctx context.Context, db *store.PostgresStore, fr fixtureRoute) (uuid.UUID, error) {
	route := &store.Route{
		Name:        fr.Name,
		Origin:      fr.Origin,
		Destination: fr.Destination,
		LengthKm:    fr.LengthKm,
	}
	if fr.ID != "" {
		id, err := uuid.Parse(fr.ID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("route id: %w", err)
		}
		route.ID = id
	}
	if err := db.UpsertRoute(ctx, route); err != nil {
		return uuid.Nil, err
	}

	var succeeded []string
	for name, doc := range fr.Factors {
		f, err := risk.ParseFactorID(name)
		if err != nil {
			return uuid.Nil, err
		}
		if _, ok := doc["length_km"]; !ok && fr.LengthKm > 0 {
			doc["length_km"] = fr.LengthKm
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return uuid.Nil, fmt.Errorf("encode %s: %w", name, err)
		}
		if err := db.PutFactorData(ctx, route.ID, f, raw); err != nil {
			return uuid.Nil, fmt.Errorf("store %s: %w", name, err)
		}
		succeeded = append(succeeded, name)
	}

	now := time.Now().UTC()
	err := db.SetCollectionStatus(ctx, route.ID, &risk.CollectionStatus{
		SucceededCategories: succeeded,
		TotalCategories:     len(risk.AllFactors),
		SamplePoints:        fr.SamplePoints,
		LastCollectedAt:     &now,
	})
	return route.ID, err
}
