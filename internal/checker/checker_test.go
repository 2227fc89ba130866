package checker

import (
	"context"
	"errors"
	"testing"

	"pricewatch/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	products   []*model.Product
	history    []model.PriceHistoryEntry
	listErr    error
	updateErr  map[string]error
	historyErr map[string]error
	updates    int
}

func (s *fakeStore) ListAllProducts(ctx context.Context) ([]*model.Product, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.products, nil
}

func (s *fakeStore) UpdateProduct(ctx context.Context, id string, upd model.ProductUpdate) error {
	if err := s.updateErr[id]; err != nil {
		return err
	}
	for _, p := range s.products {
		if p.ID == id {
			p.Name = upd.Name
			p.CurrentPrice = upd.CurrentPrice
			p.Currency = upd.Currency
			p.ImageURL = upd.ImageURL
			p.UpdatedAt = upd.UpdatedAt
			s.updates++
			return nil
		}
	}
	return errors.New("not found")
}

func (s *fakeStore) AppendHistory(ctx context.Context, entry model.PriceHistoryEntry) error {
	if err := s.historyErr[entry.ProductID]; err != nil {
		return err
	}
	s.history = append(s.history, entry)
	return nil
}

type fakeUsers struct {
	emails  map[string]string
	err     error
	lookups int
}

func (u *fakeUsers) GetUserEmailByID(ctx context.Context, userID string) (string, error) {
	u.lookups++
	if u.err != nil {
		return "", u.err
	}
	email, ok := u.emails[userID]
	if !ok {
		return "", errors.New("user not found")
	}
	return email, nil
}

type fakeExtractor struct {
	results map[string]model.ExtractedData
	errs    map[string]error
	calls   int
}

func (e *fakeExtractor) Extract(ctx context.Context, url string) (model.ExtractedData, error) {
	e.calls++
	if err := e.errs[url]; err != nil {
		return model.ExtractedData{}, err
	}
	return e.results[url], nil
}

type sentAlert struct {
	to       string
	product  string
	oldPrice decimal.Decimal
	newPrice decimal.Decimal
}

type fakeSender struct {
	sent []sentAlert
	err  error
}

func (s *fakeSender) SendPriceDropAlert(to string, product *model.Product, oldPrice, newPrice decimal.Decimal) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentAlert{to: to, product: product.ID, oldPrice: oldPrice, newPrice: newPrice})
	return nil
}

func product(id, url, userID string, price string) *model.Product {
	return &model.Product{
		ID:           id,
		URL:          url,
		Name:         "Stored Name",
		CurrentPrice: decimal.RequireFromString(price),
		Currency:     "USD",
		UserID:       userID,
	}
}

func extracted(name, price, currency string) model.ExtractedData {
	return model.ExtractedData{
		ProductName:  name,
		CurrentPrice: price,
		CurrencyCode: currency,
	}
}

func TestRunPriceDrop(t *testing.T) {
	st := &fakeStore{products: []*model.Product{
		product("p1", "https://shop.example/p1", "u1", "100"),
	}}
	users := &fakeUsers{emails: map[string]string{"u1": "u1@example.com"}}
	ext := &fakeExtractor{results: map[string]model.ExtractedData{
		"https://shop.example/p1": extracted("Fresh Name", "80", "USD"),
	}}
	sender := &fakeSender{}

	report, err := New(st, users, ext, sender).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunReport{Total: 1, Updated: 1, PriceChanges: 1, AlertsSent: 1}, report)

	require.Len(t, st.history, 1)
	assert.Equal(t, "p1", st.history[0].ProductID)
	assert.True(t, st.history[0].Price.Equal(decimal.RequireFromString("80")))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "u1@example.com", sender.sent[0].to)
	assert.True(t, sender.sent[0].oldPrice.Equal(decimal.RequireFromString("100")))
	assert.True(t, sender.sent[0].newPrice.Equal(decimal.RequireFromString("80")))

	assert.Equal(t, "Fresh Name", st.products[0].Name)
	assert.False(t, st.products[0].UpdatedAt.IsZero())
}

func TestRunNoPriceChange(t *testing.T) {
	st := &fakeStore{products: []*model.Product{
		product("p1", "https://shop.example/p1", "u1", "100"),
	}}
	users := &fakeUsers{emails: map[string]string{"u1": "u1@example.com"}}
	ext := &fakeExtractor{results: map[string]model.ExtractedData{
		// same amount at a different scale still counts as unchanged
		"https://shop.example/p1": extracted("Fresh Name", "100.00", "USD"),
	}}
	sender := &fakeSender{}

	report, err := New(st, users, ext, sender).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunReport{Total: 1, Updated: 1}, report)
	assert.Empty(t, st.history)
	assert.Empty(t, sender.sent)
	assert.Equal(t, 1, st.updates, "updated_at must be stamped even without a price change")
}

func TestRunPriceRise(t *testing.T) {
	st := &fakeStore{products: []*model.Product{
		product("p1", "https://shop.example/p1", "u1", "100"),
	}}
	users := &fakeUsers{emails: map[string]string{"u1": "u1@example.com"}}
	ext := &fakeExtractor{results: map[string]model.ExtractedData{
		"https://shop.example/p1": extracted("Fresh Name", "120", "USD"),
	}}
	sender := &fakeSender{}

	report, err := New(st, users, ext, sender).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunReport{Total: 1, Updated: 1, PriceChanges: 1}, report)
	require.Len(t, st.history, 1)
	assert.Empty(t, sender.sent, "rises never alert")
	assert.Zero(t, users.lookups)
}

func TestRunNoPriceFound(t *testing.T) {
	st := &fakeStore{products: []*model.Product{
		product("p1", "https://shop.example/p1", "u1", "100"),
	}}
	ext := &fakeExtractor{results: map[string]model.ExtractedData{
		"https://shop.example/p1": extracted("Fresh Name", "", "USD"),
	}}

	report, err := New(st, &fakeUsers{}, ext, &fakeSender{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Updated)
	assert.Zero(t, st.updates, "no store mutation for unpriced items")
	assert.Empty(t, st.history)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "no price found")
}

func TestRunNoNameExtracted(t *testing.T) {
	// slug-less URL, so the normalizer cannot derive a fallback name either
	st := &fakeStore{products: []*model.Product{
		product("p1", "https://shop.example", "u1", "100"),
	}}
	ext := &fakeExtractor{results: map[string]model.ExtractedData{
		"https://shop.example": extracted("", "80", "USD"),
	}}
	sender := &fakeSender{}

	report, err := New(st, &fakeUsers{}, ext, sender).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Updated)
	assert.Zero(t, report.PriceChanges)
	assert.Zero(t, st.updates, "no store mutation for unextractable items")
	assert.Empty(t, st.history)
	assert.Empty(t, sender.sent)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "no data extracted")
}

func TestRunItemIsolation(t *testing.T) {
	st := &fakeStore{products: []*model.Product{
		product("p1", "https://shop.example/p1", "u1", "100"),
		product("p2", "https://shop.example/p2", "u1", "50"),
		product("p3", "https://shop.example/p3", "u1", "30"),
	}}
	users := &fakeUsers{emails: map[string]string{"u1": "u1@example.com"}}
	ext := &fakeExtractor{
		results: map[string]model.ExtractedData{
			"https://shop.example/p1": extracted("A", "100", "USD"),
			"https://shop.example/p3": extracted("C", "25", "USD"),
		},
		errs: map[string]error{
			"https://shop.example/p2": errors.New("connection reset"),
		},
	}
	sender := &fakeSender{}

	report, err := New(st, users, ext, sender).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.PriceChanges)
	assert.Equal(t, 1, report.AlertsSent)
	assert.Equal(t, 3, ext.calls, "every item is attempted")
}

func TestRunOwnerlessProductDrop(t *testing.T) {
	st := &fakeStore{products: []*model.Product{
		product("p1", "https://shop.example/p1", "", "100"),
	}}
	users := &fakeUsers{}
	ext := &fakeExtractor{results: map[string]model.ExtractedData{
		"https://shop.example/p1": extracted("A", "80", "USD"),
	}}
	sender := &fakeSender{}

	report, err := New(st, users, ext, sender).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunReport{Total: 1, Updated: 1, PriceChanges: 1}, report)
	assert.Empty(t, sender.sent)
	assert.Zero(t, users.lookups, "no lookup attempted without an owner")
}

func TestRunAlertFailuresAreNonFatal(t *testing.T) {
	t.Run("UserLookupError", func(t *testing.T) {
		st := &fakeStore{products: []*model.Product{
			product("p1", "https://shop.example/p1", "u1", "100"),
		}}
		users := &fakeUsers{err: errors.New("directory unavailable")}
		ext := &fakeExtractor{results: map[string]model.ExtractedData{
			"https://shop.example/p1": extracted("A", "80", "USD"),
		}}

		report, err := New(st, users, ext, &fakeSender{}).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, model.RunReport{Total: 1, Updated: 1, PriceChanges: 1}, report)
		require.Len(t, st.history, 1, "history is kept even when the alert is withheld")
	})

	t.Run("EmptyEmail", func(t *testing.T) {
		st := &fakeStore{products: []*model.Product{
			product("p1", "https://shop.example/p1", "u1", "100"),
		}}
		users := &fakeUsers{emails: map[string]string{"u1": ""}}
		ext := &fakeExtractor{results: map[string]model.ExtractedData{
			"https://shop.example/p1": extracted("A", "80", "USD"),
		}}
		sender := &fakeSender{}

		report, err := New(st, users, ext, sender).Run(context.Background())
		require.NoError(t, err)

		assert.Zero(t, report.AlertsSent)
		assert.Zero(t, report.Failed)
		assert.Empty(t, sender.sent)
	})

	t.Run("SenderError", func(t *testing.T) {
		st := &fakeStore{products: []*model.Product{
			product("p1", "https://shop.example/p1", "u1", "100"),
		}}
		users := &fakeUsers{emails: map[string]string{"u1": "u1@example.com"}}
		ext := &fakeExtractor{results: map[string]model.ExtractedData{
			"https://shop.example/p1": extracted("A", "80", "USD"),
		}}
		sender := &fakeSender{err: errors.New("smtp refused")}

		report, err := New(st, users, ext, sender).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, model.RunReport{Total: 1, Updated: 1, PriceChanges: 1}, report)
	})
}

func TestRunPersistenceFailures(t *testing.T) {
	t.Run("UpdateFails", func(t *testing.T) {
		st := &fakeStore{
			products:  []*model.Product{product("p1", "https://shop.example/p1", "u1", "100")},
			updateErr: map[string]error{"p1": errors.New("disk full")},
		}
		ext := &fakeExtractor{results: map[string]model.ExtractedData{
			"https://shop.example/p1": extracted("A", "80", "USD"),
		}}

		report, err := New(st, &fakeUsers{}, ext, &fakeSender{}).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, report.Failed)
		assert.Zero(t, report.Updated)
		assert.Empty(t, st.history)
	})

	t.Run("HistoryAppendFails", func(t *testing.T) {
		st := &fakeStore{
			products:   []*model.Product{product("p1", "https://shop.example/p1", "u1", "100")},
			historyErr: map[string]error{"p1": errors.New("disk full")},
		}
		users := &fakeUsers{emails: map[string]string{"u1": "u1@example.com"}}
		ext := &fakeExtractor{results: map[string]model.ExtractedData{
			"https://shop.example/p1": extracted("A", "80", "USD"),
		}}
		sender := &fakeSender{}

		report, err := New(st, users, ext, sender).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, report.Failed)
		assert.Zero(t, report.Updated)
		// the product update itself is not rolled back
		assert.Equal(t, 1, st.updates)
		assert.Empty(t, sender.sent)
	})
}

func TestRunFieldFallbacks(t *testing.T) {
	p := product("p1", "https://shop.example/p1", "u1", "100")
	p.ImageURL = "https://img.example/stored.jpg"
	st := &fakeStore{products: []*model.Product{p}}

	ext := &fakeExtractor{results: map[string]model.ExtractedData{
		// no name, no image: stored values must survive
		"https://shop.example/p1": {CurrentPrice: "100", CurrencyCode: "USD"},
	}}

	_, err := New(st, &fakeUsers{}, ext, &fakeSender{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Stored Name", st.products[0].Name)
	assert.Equal(t, "https://img.example/stored.jpg", st.products[0].ImageURL)
}

func TestRunIdempotence(t *testing.T) {
	st := &fakeStore{products: []*model.Product{
		product("p1", "https://shop.example/p1", "u1", "100"),
	}}
	users := &fakeUsers{emails: map[string]string{"u1": "u1@example.com"}}
	ext := &fakeExtractor{results: map[string]model.ExtractedData{
		"https://shop.example/p1": extracted("A", "80", "USD"),
	}}
	sender := &fakeSender{}
	chk := New(st, users, ext, sender)

	first, err := chk.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.PriceChanges)
	assert.Equal(t, 1, first.AlertsSent)

	second, err := chk.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.PriceChanges)
	assert.Zero(t, second.AlertsSent)
	assert.Equal(t, 1, second.Updated)
	assert.Len(t, st.history, 1, "no duplicate history entry on an unchanged rerun")
}

func TestRunListFailure(t *testing.T) {
	st := &fakeStore{listErr: errors.New("store unreachable")}
	ext := &fakeExtractor{}

	_, err := New(st, &fakeUsers{}, ext, &fakeSender{}).Run(context.Background())

	require.Error(t, err)
	assert.Zero(t, ext.calls, "no extraction when the listing itself fails")
}

func TestRunUnparseablePrice(t *testing.T) {
	st := &fakeStore{products: []*model.Product{
		product("p1", "https://shop.example/p1", "u1", "100"),
	}}
	ext := &fakeExtractor{results: map[string]model.ExtractedData{
		"https://shop.example/p1": extracted("A", "see site", "USD"),
	}}

	report, err := New(st, &fakeUsers{}, ext, &fakeSender{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, st.updates)
}

func TestRunCancelledContext(t *testing.T) {
	st := &fakeStore{products: []*model.Product{
		product("p1", "https://shop.example/p1", "u1", "100"),
		product("p2", "https://shop.example/p2", "u1", "50"),
	}}
	ext := &fakeExtractor{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(st, &fakeUsers{}, ext, &fakeSender{}).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Zero(t, report.Updated+report.Failed)
	assert.Zero(t, ext.calls)
}
