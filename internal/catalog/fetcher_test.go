package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jogardn/restaurant-storefront/internal/apiclient"
	"github.com/jogardn/restaurant-storefront/internal/circuitbreaker"
	"github.com/jogardn/restaurant-storefront/internal/storage"
	"github.com/jogardn/restaurant-storefront/pkg/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

type backend struct {
	mu    sync.Mutex
	calls []string
	mux   *http.ServeMux
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	auth := "anon"
	if r.Header.Get("Authorization") != "" {
		auth = "auth"
	}
	b.calls = append(b.calls, auth+" "+r.URL.RequestURI())
	b.mu.Unlock()
	b.mux.ServeHTTP(w, r)
}

func (b *backend) called(call string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.calls {
		if c == call {
			return true
		}
	}
	return false
}

func newFetcher(t *testing.T, mux *http.ServeMux, token string) (*Fetcher, *backend) {
	t.Helper()
	b := &backend{mux: mux}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	logger := quietLogger()
	client := apiclient.New(apiclient.Config{BaseURL: srv.URL}, srv.Client(),
		apiclient.NewKVTokenStore(storage.NewMemoryStore(), token), circuitbreaker.NewManager(logger), logger)
	return NewFetcher(client, "https://cdn.example", logger), b
}

func write(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		w.Write([]byte(`{"detail":"nope"}`))
	}
}

func TestFetchMenuCatalog_Public(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(CategoriesPath, write(`[{"id":1,"name_ar":"مشويات","name_en":"Grills","icon":"🔥"}]`))
	mux.HandleFunc(ProductsPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.Write([]byte(`{"next":null,"results":[{"id":11,"name":"Tea","price":"15.00","category":1,"image":"/media/tea.jpg","is_new":true}]}`))
			return
		}
		w.Write([]byte(`{"next":"http://backend.internal/api/products/?is_available=true&page=2","results":[{"id":10,"name_en":"Kofta","name_ar":"كفتة","price":120,"category":{"id":1},"tag":"popular"}]}`))
	})
	mux.HandleFunc(OffersPath, write(`{"results":[{"id":5,"title":"Family box","price":300,"old_price":"350","badge":"-15%"}]}`))

	f, b := newFetcher(t, mux, "")
	catalog, err := f.FetchMenuCatalog(context.Background())
	require.NoError(t, err)
	require.NotNil(t, catalog)

	require.Len(t, catalog.Categories, 2)
	assert.Equal(t, models.AllCategoryID, catalog.Categories[0].ID)
	assert.Equal(t, AllLabel, catalog.Categories[0].Label)
	assert.Equal(t, models.MenuCategory{ID: "1", Label: models.LocalizedText{AR: "مشويات", EN: "Grills"}, Icon: "🔥"}, catalog.Categories[1])

	require.Len(t, catalog.Items, 2)
	assert.Equal(t, int64(10), catalog.Items[0].ID)
	assert.Equal(t, "1", catalog.Items[0].Category)
	assert.Equal(t, "hot", catalog.Items[0].Tag)
	assert.Equal(t, 15.0, catalog.Items[1].Price)
	assert.Equal(t, models.LocalizedText{AR: "Tea", EN: "Tea"}, catalog.Items[1].Name)
	assert.Equal(t, "https://cdn.example/media/tea.jpg", catalog.Items[1].Image)
	assert.Equal(t, "new", catalog.Items[1].Tag)

	require.Len(t, catalog.Offers, 1)
	require.NotNil(t, catalog.Offers[0].OldPrice)
	assert.Equal(t, 350.0, *catalog.Offers[0].OldPrice)

	assert.True(t, b.called("anon /api/categories/?is_active=true"))
	assert.True(t, b.called("anon /api/products/?is_available=true"))
	assert.True(t, b.called("anon /api/products/?is_available=true&page=2"))
	assert.True(t, b.called("anon /api/offers/?is_active=true"))
}

func TestFetchMenuCatalog_ProductsFallBackToPublicOn401(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(CategoriesPath, write(`{"results":[{"id":"drinks","name":"Drinks"}]}`))
	mux.HandleFunc(ProductsPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			status(http.StatusUnauthorized)(w, r)
			return
		}
		w.Write([]byte(`[{"id":3,"name":"Lemonade","price":20,"category":"drinks"}]`))
	})
	mux.HandleFunc(OffersPath, write(`[]`))
	mux.HandleFunc(ActiveOffersPath, write(`[]`))

	f, b := newFetcher(t, mux, "staff-token")
	catalog, err := f.FetchMenuCatalog(context.Background())
	require.NoError(t, err)
	require.NotNil(t, catalog)

	require.Len(t, catalog.Categories, 2)
	assert.Equal(t, "drinks", catalog.Categories[1].ID)
	require.Len(t, catalog.Items, 1)
	assert.Equal(t, "Lemonade", catalog.Items[0].Name.EN)

	assert.True(t, b.called("auth /api/categories/"))
	assert.True(t, b.called("auth /api/products/"))
	assert.True(t, b.called("anon /api/products/?is_available=true"))
	assert.False(t, b.called("anon /api/categories/?is_active=true"))
}

func TestFetchMenuCatalog_UnavailableWhenBothFail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(CategoriesPath, status(http.StatusInternalServerError))
	mux.HandleFunc(ProductsPath, status(http.StatusInternalServerError))
	mux.HandleFunc(OffersPath, write(`[{"id":1,"title":"x","price":1}]`))

	f, _ := newFetcher(t, mux, "")
	catalog, err := f.FetchMenuCatalog(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, catalog)
}

func TestFetchMenuCatalog_SynthesizesCategories(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(CategoriesPath, status(http.StatusNotFound))
	mux.HandleFunc(ProductsPath, write(`[
		{"id":1,"name":"A","price":1,"category":{"id":7,"name_en":"Desserts","name_ar":"حلويات"}},
		{"id":2,"name":"B","price":2,"category":"grill"},
		{"id":3,"name":"C","price":3,"category":7},
		{"id":4,"name":"Hidden","price":4,"category":"secret","is_available":false}
	]`))
	mux.HandleFunc(OffersPath, write(`[]`))
	mux.HandleFunc(ActiveOffersPath, status(http.StatusNotFound))

	f, _ := newFetcher(t, mux, "")
	catalog, err := f.FetchMenuCatalog(context.Background())
	require.NoError(t, err)
	require.NotNil(t, catalog)

	ids := make([]string, 0, len(catalog.Categories))
	for _, c := range catalog.Categories {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"all", "7", "grill"}, ids)
	assert.Equal(t, "Desserts", catalog.Categories[1].Label.EN)
	assert.Equal(t, "grill", catalog.Categories[2].Label.AR)
	assert.Len(t, catalog.Items, 3)
	assert.Empty(t, catalog.Offers)
}

func TestFetchOffers_Tiers(t *testing.T) {
	t.Run("active endpoint single object", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc(OffersPath, status(http.StatusInternalServerError))
		mux.HandleFunc(ActiveOffersPath, write(`{"id":9,"title_en":"Lunch deal","title_ar":"عرض الغداء","price":99}`))

		f, _ := newFetcher(t, mux, "")
		offers := f.fetchOffers(context.Background(), false)
		require.Len(t, offers, 1)
		assert.Equal(t, "عرض الغداء", offers[0].Title.AR)
		assert.Nil(t, offers[0].OldPrice)
	})

	t.Run("public list after authenticated tiers fail", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc(OffersPath, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "" {
				status(http.StatusForbidden)(w, r)
				return
			}
			w.Write([]byte(`[{"id":1,"title":"Public","price":10}]`))
		})
		mux.HandleFunc(ActiveOffersPath, status(http.StatusForbidden))

		f, _ := newFetcher(t, mux, "token")
		offers := f.fetchOffers(context.Background(), true)
		require.Len(t, offers, 1)
		assert.Equal(t, "Public", offers[0].Title.EN)
	})

	t.Run("everything fails", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/", status(http.StatusBadGateway))

		f, _ := newFetcher(t, mux, "")
		offers := f.fetchOffers(context.Background(), false)
		assert.NotNil(t, offers)
		assert.Empty(t, offers)
	})
}

func TestFetchMenuCatalog_RecoversAfterBreakerOpens(t *testing.T) {
	var healthy atomic.Bool
	guard := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !healthy.Load() {
				status(http.StatusInternalServerError)(w, r)
				return
			}
			next(w, r)
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc(CategoriesPath, guard(write(`[{"id":1,"name":"Grill"}]`)))
	mux.HandleFunc(ProductsPath, guard(write(`[{"id":10,"name":"Kofta","price":80,"category":1}]`)))
	mux.HandleFunc(OffersPath, guard(write(`[]`)))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	logger := quietLogger()
	client := apiclient.New(apiclient.Config{
		BaseURL:      srv.URL,
		MaxFailures:  2,
		BreakerReset: 50 * time.Millisecond,
	}, srv.Client(), apiclient.NewKVTokenStore(storage.NewMemoryStore(), ""), circuitbreaker.NewManager(logger), logger)
	f := NewFetcher(client, "", logger)

	menu, err := f.FetchMenuCatalog(context.Background())
	require.NoError(t, err)
	assert.Nil(t, menu)

	healthy.Store(true)
	time.Sleep(80 * time.Millisecond)

	menu, err = f.FetchMenuCatalog(context.Background())
	require.NoError(t, err)
	require.NotNil(t, menu)
	assert.Len(t, menu.Categories, 2)
	assert.Len(t, menu.Items, 1)
}
