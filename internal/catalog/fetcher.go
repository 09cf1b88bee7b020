package catalog

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jogardn/restaurant-storefront/internal/apiclient"
	"github.com/jogardn/restaurant-storefront/pkg/models"
)

const (
	CategoriesPath   = "/api/categories/"
	ProductsPath     = "/api/products/"
	OffersPath       = "/api/offers/"
	ActiveOffersPath = "/api/offers/active/"
)

// AllLabel is the label of the synthetic category listing every item.
var AllLabel = models.LocalizedText{AR: "الكل", EN: "All"}

type Fetcher struct {
	client     *apiclient.Client
	normalizer normalizer
	logger     *logrus.Logger
}

// NewFetcher builds a fetcher. mediaBase prefixes relative image paths and
// is normally the backend base URL.
func NewFetcher(client *apiclient.Client, mediaBase string, logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		client:     client,
		normalizer: normalizer{mediaBase: strings.TrimRight(mediaBase, "/")},
		logger:     logger,
	}
}

func publicQuery(path string) url.Values {
	switch path {
	case ProductsPath:
		return url.Values{"is_available": {"true"}}
	default:
		return url.Values{"is_active": {"true"}}
	}
}

// list fetches every page of path. Unauthenticated calls carry the public
// filters the backend requires from anonymous clients.
func (f *Fetcher) list(ctx context.Context, path string, authed bool) ([]apiclient.Record, error) {
	opts := apiclient.Options{NoAuth: !authed}
	if !authed {
		opts.Query = publicQuery(path)
	}
	return f.client.FetchAllPages(ctx, path, opts)
}

// FetchMenuCatalog assembles categories, items and offers. It returns nil
// when neither categories nor products could be loaded, which callers must
// treat as "menu unavailable" rather than an empty menu.
func (f *Fetcher) FetchMenuCatalog(ctx context.Context) (*models.Catalog, error) {
	authed := f.client.HasToken(ctx)

	var (
		wg            sync.WaitGroup
		rawCategories []apiclient.Record
		rawProducts   []apiclient.Record
		categoriesErr error
		productsErr   error
		offers        []models.OfferItem
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		rawCategories, categoriesErr = f.list(ctx, CategoriesPath, authed)
	}()
	go func() {
		defer wg.Done()
		rawProducts, productsErr = f.list(ctx, ProductsPath, authed)
	}()
	go func() {
		defer wg.Done()
		offers = f.fetchOffers(ctx, authed)
	}()
	wg.Wait()

	if authed && apiclient.IsAuthError(categoriesErr) {
		f.logger.WithError(categoriesErr).Info("Categories rejected the token, retrying as public")
		rawCategories, categoriesErr = f.list(ctx, CategoriesPath, false)
	}
	if authed && apiclient.IsAuthError(productsErr) {
		f.logger.WithError(productsErr).Info("Products rejected the token, retrying as public")
		rawProducts, productsErr = f.list(ctx, ProductsPath, false)
	}

	if categoriesErr != nil && productsErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		f.logger.WithFields(logrus.Fields{
			"categories_error": categoriesErr.Error(),
			"products_error":   productsErr.Error(),
		}).Warn("Menu catalog unavailable")
		return nil, nil
	}
	if categoriesErr != nil {
		f.logger.WithError(categoriesErr).Warn("Failed to fetch categories, deriving them from products")
	}
	if productsErr != nil {
		f.logger.WithError(productsErr).Warn("Failed to fetch products")
	}

	items := make([]models.MenuItem, 0, len(rawProducts))
	for _, rec := range rawProducts {
		if item, ok := f.normalizer.product(rec); ok {
			items = append(items, item)
		}
	}

	categories := make([]models.MenuCategory, 0, len(rawCategories)+1)
	categories = append(categories, models.MenuCategory{ID: models.AllCategoryID, Label: AllLabel})
	known := f.categories(rawCategories)
	if len(known) == 0 {
		known = f.categoriesFromProducts(rawProducts, items)
	}
	categories = append(categories, known...)

	catalog := &models.Catalog{
		Categories: categories,
		Items:      items,
		Offers:     offers,
	}
	f.logger.WithFields(logrus.Fields{
		"categories": len(catalog.Categories),
		"items":      len(catalog.Items),
		"offers":     len(catalog.Offers),
		"auth":       authed,
	}).Debug("Menu catalog fetched")
	return catalog, nil
}

func (f *Fetcher) categories(records []apiclient.Record) []models.MenuCategory {
	seen := make(map[string]bool, len(records))
	out := make([]models.MenuCategory, 0, len(records))
	for _, rec := range records {
		if hidden(rec) {
			continue
		}
		category, ok := f.normalizer.category(rec)
		if !ok || category.ID == models.AllCategoryID || seen[category.ID] {
			continue
		}
		seen[category.ID] = true
		out = append(out, category)
	}
	return out
}

// categoriesFromProducts derives categories from the distinct references
// carried by products, in first-seen order. Nested category objects keep
// their labels; bare ids are used as their own label.
func (f *Fetcher) categoriesFromProducts(records []apiclient.Record, items []models.MenuItem) []models.MenuCategory {
	nested := make(map[string]models.MenuCategory)
	for _, rec := range records {
		ref, ok := first(rec, productFields["category"]).(map[string]interface{})
		if !ok {
			continue
		}
		if category, ok := f.normalizer.category(ref); ok {
			nested[category.ID] = category
		}
	}

	seen := make(map[string]bool)
	var out []models.MenuCategory
	for _, item := range items {
		if item.Category == "" || item.Category == models.AllCategoryID || seen[item.Category] {
			continue
		}
		seen[item.Category] = true
		if category, ok := nested[item.Category]; ok {
			out = append(out, category)
			continue
		}
		out = append(out, models.MenuCategory{
			ID:    item.Category,
			Label: models.LocalizedText{AR: item.Category, EN: item.Category},
		})
	}
	return out
}

// fetchOffers tries the paginated list, then the active-offers endpoint,
// then the public list. It never fails; no offers is an empty slice.
func (f *Fetcher) fetchOffers(ctx context.Context, authed bool) []models.OfferItem {
	records, err := f.list(ctx, OffersPath, authed)
	if err == nil && len(records) > 0 {
		return f.offers(records)
	}
	if err != nil {
		f.logger.WithError(err).Debug("Offer list unavailable, trying active offers")
	}

	data, err := f.client.Raw(ctx, ActiveOffersPath, apiclient.Options{NoAuth: !authed})
	if err == nil {
		records, _, err = apiclient.DecodeRecords(data)
		if err == nil && len(records) > 0 {
			return f.offers(records)
		}
	}
	if err != nil {
		f.logger.WithError(err).Debug("Active offers unavailable")
	}

	if authed {
		records, err = f.list(ctx, OffersPath, false)
		if err == nil {
			return f.offers(records)
		}
		f.logger.WithError(err).Debug("Public offer list unavailable")
	}
	return []models.OfferItem{}
}

func (f *Fetcher) offers(records []apiclient.Record) []models.OfferItem {
	out := make([]models.OfferItem, 0, len(records))
	for _, rec := range records {
		if offer, ok := f.normalizer.offer(rec); ok {
			out = append(out, offer)
		}
	}
	return out
}
