package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trailpoints/internal/app"
	"trailpoints/internal/infra/memory"
	"trailpoints/internal/metrics"
	"trailpoints/internal/seed"
	"trailpoints/internal/storage"
)

const fixture = `
users:
  - id: u1
  - id: u2
    points: 20
places:
  - {id: p1, name: Louvre, type: art, city: Paris}
  - {id: p2, name: Orsay, type: art, city: Paris}
  - {id: p3, name: Opéra, type: musique, city: Paris}
favorites:
  - {userId: u2, placeId: p1}
trails:
  - id: t1
    placeId: p1
    name: Peintres
    questions:
      - id: q1
        text: Qui a peint la Joconde ?
        image: trail-1/img.png
        point: 10
        answers:
          - {id: a1, text: Léonard de Vinci, correct: true}
          - {id: a2, text: Monet}
      - id: q2
        text: En quelle année le Louvre a-t-il ouvert ?
        point: 5
        answers:
          - {id: b1, text: "1793", correct: true}
          - {id: b2, text: "1889"}
rewards:
  - {id: r1, title: Carte postale, cost: 15, image: rewards/r1.png}
`

type testEnv struct {
	server *httptest.Server
	store  *memory.Store
	hub    *app.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ds, err := seed.Parse(strings.NewReader(fixture), time.Now())
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	store := memory.NewStore()
	if err := store.Import(context.Background(), ds); err != nil {
		t.Fatalf("import: %v", err)
	}

	hub := app.NewHub()
	assets := storage.LocalProvider{BaseURL: "http://minio/qcm"}
	m := metrics.New()
	opts := []app.Option{app.WithHub(hub), app.WithAssets(assets), app.WithObserver(m)}

	router := NewRouter(RouterConfig{
		Ledger:    app.NewLedgerService(store, store, opts...),
		Progress:  app.NewProgressService(store, store, nil, opts...),
		Rewards:   app.NewRewardService(store, store, opts...),
		Recommend: app.NewRecommendationService(store),
		Hub:       hub,
		Assets:    assets,
		Metrics:   m,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testEnv{server: server, store: store, hub: hub}
}
