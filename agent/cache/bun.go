package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
)

type basicRow struct {
	bun.BaseModel `bun:"table:entity_basic"`

	ID          string    `bun:"id,pk"`
	Name        string    `bun:"name,notnull"`
	Rating      float64   `bun:"rating"`
	ReviewCount int       `bun:"review_count"`
	Categories  []string  `bun:"categories,array"`
	PriceRange  string    `bun:"price_range"`
	Phone       string    `bun:"phone"`
	Location    string    `bun:"location"`
	Website     string    `bun:"website"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

type detailRow struct {
	bun.BaseModel `bun:"table:entity_detail"`

	ID             string    `bun:"id,pk"`
	WebsiteContent string    `bun:"website_content"`
	HasContent     bool      `bun:"has_content"`
	ContentLength  int       `bun:"content_length"`
	FetchedAt      time.Time `bun:"fetched_at,notnull"`
}

type sentimentRow struct {
	bun.BaseModel `bun:"table:entity_sentiment"`

	ID           string    `bun:"id,pk"`
	TotalReviews int       `bun:"total_reviews"`
	Positive     int       `bun:"positive"`
	Neutral      int       `bun:"neutral"`
	Negative     int       `bun:"negative"`
	OverallLabel string    `bun:"overall_label"`
	RawJSON      []byte    `bun:"raw_json,type:jsonb"`
	AnalyzedAt   time.Time `bun:"analyzed_at,notnull"`
}

type BunConfig struct {
	DSN string `envconfig:"DSN" split_words:"true" required:"true"`
}

// BunStore persists the entity cache in Postgres through bun. Row-level
// upserts give the serialized-writers-per-entity guarantee without any
// cross-entity locking.
type BunStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewBunStore(cfg BunConfig) (*BunStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("cache dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	return &BunStore{db: db, now: time.Now}, nil
}

// Init creates the three tier tables if they do not exist.
func (s *BunStore) Init(ctx context.Context) error {
	models := []any{
		(*basicRow)(nil),
		(*detailRow)(nil),
		(*sentimentRow)(nil),
	}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create cache table: %w", err)
		}
	}
	return nil
}

func (s *BunStore) Close() error {
	return s.db.Close()
}

func (s *BunStore) PutBasic(ctx context.Context, info contractx.BasicInfo) error {
	if strings.TrimSpace(info.ID) == "" {
		return ErrEmptyEntityID
	}
	row := &basicRow{
		ID:          info.ID,
		Name:        info.Name,
		Rating:      info.Rating,
		ReviewCount: info.ReviewCount,
		Categories:  info.Categories,
		PriceRange:  info.PriceRange,
		Phone:       info.Phone,
		Location:    info.Location,
		Website:     info.Website,
		UpdatedAt:   s.now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("rating = EXCLUDED.rating").
		Set("review_count = EXCLUDED.review_count").
		Set("categories = EXCLUDED.categories").
		Set("price_range = EXCLUDED.price_range").
		Set("phone = EXCLUDED.phone").
		Set("location = EXCLUDED.location").
		Set("website = EXCLUDED.website").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert basic tier: %w", err)
	}
	return nil
}

func (s *BunStore) PutDetail(ctx context.Context, entityID string, info contractx.DetailInfo) error {
	if strings.TrimSpace(entityID) == "" {
		return ErrEmptyEntityID
	}
	row := &detailRow{
		ID:             entityID,
		WebsiteContent: info.WebsiteContent,
		HasContent:     info.HasContent,
		ContentLength:  info.ContentLength,
		FetchedAt:      s.now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("website_content = EXCLUDED.website_content").
		Set("has_content = EXCLUDED.has_content").
		Set("content_length = EXCLUDED.content_length").
		Set("fetched_at = EXCLUDED.fetched_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert detail tier: %w", err)
	}
	return nil
}

func (s *BunStore) PutSentiment(ctx context.Context, entityID string, info contractx.SentimentInfo) error {
	if strings.TrimSpace(entityID) == "" {
		return ErrEmptyEntityID
	}
	raw, err := marshalExemplars(info)
	if err != nil {
		return err
	}
	row := &sentimentRow{
		ID:           entityID,
		TotalReviews: info.TotalReviews,
		Positive:     info.Positive,
		Neutral:      info.Neutral,
		Negative:     info.Negative,
		OverallLabel: info.OverallLabel,
		RawJSON:      raw,
		AnalyzedAt:   s.now().UTC(),
	}
	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("total_reviews = EXCLUDED.total_reviews").
		Set("positive = EXCLUDED.positive").
		Set("neutral = EXCLUDED.neutral").
		Set("negative = EXCLUDED.negative").
		Set("overall_label = EXCLUDED.overall_label").
		Set("raw_json = EXCLUDED.raw_json").
		Set("analyzed_at = EXCLUDED.analyzed_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert sentiment tier: %w", err)
	}
	return nil
}

func (s *BunStore) GetBasic(ctx context.Context, entityID string) (contractx.BasicInfo, bool, error) {
	var row basicRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", entityID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return contractx.BasicInfo{}, false, nil
	}
	if err != nil {
		return contractx.BasicInfo{}, false, fmt.Errorf("select basic tier: %w", err)
	}
	return contractx.BasicInfo{
		ID:          row.ID,
		Name:        row.Name,
		Rating:      row.Rating,
		ReviewCount: row.ReviewCount,
		Categories:  row.Categories,
		PriceRange:  row.PriceRange,
		Phone:       row.Phone,
		Location:    row.Location,
		Website:     row.Website,
	}, true, nil
}

func (s *BunStore) GetDetail(ctx context.Context, entityID string) (contractx.DetailInfo, bool, error) {
	var row detailRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", entityID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return contractx.DetailInfo{}, false, nil
	}
	if err != nil {
		return contractx.DetailInfo{}, false, fmt.Errorf("select detail tier: %w", err)
	}
	return contractx.DetailInfo{
		WebsiteContent: row.WebsiteContent,
		HasContent:     row.HasContent,
		ContentLength:  row.ContentLength,
	}, true, nil
}

func (s *BunStore) GetSentiment(ctx context.Context, entityID string) (contractx.SentimentInfo, bool, error) {
	var row sentimentRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", entityID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return contractx.SentimentInfo{}, false, nil
	}
	if err != nil {
		return contractx.SentimentInfo{}, false, fmt.Errorf("select sentiment tier: %w", err)
	}
	info := contractx.SentimentInfo{
		TotalReviews: row.TotalReviews,
		Positive:     row.Positive,
		Neutral:      row.Neutral,
		Negative:     row.Negative,
		OverallLabel: row.OverallLabel,
	}
	if ex, err := unmarshalExemplars(row.RawJSON); err == nil {
		info.Exemplars = ex
	}
	return info, true, nil
}

func (s *BunStore) Has(ctx context.Context, entityID string, tier contractx.Tier) (bool, error) {
	var model any
	switch tier {
	case contractx.TierBasic:
		model = (*basicRow)(nil)
	case contractx.TierDetail:
		model = (*detailRow)(nil)
	case contractx.TierSentiment:
		model = (*sentimentRow)(nil)
	default:
		return false, fmt.Errorf("unknown tier %q", tier)
	}
	count, err := s.db.NewSelect().Model(model).Where("id = ?", entityID).Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count tier %s: %w", tier, err)
	}
	return count > 0, nil
}

func (s *BunStore) ListKnownEntities(ctx context.Context) ([]EntitySummary, error) {
	var rows []basicRow
	if err := s.db.NewSelect().Model(&rows).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list cached entities: %w", err)
	}
	out := make([]EntitySummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, EntitySummary{
			ID:       r.ID,
			Name:     r.Name,
			Rating:   r.Rating,
			Location: r.Location,
		})
	}
	return out, nil
}
