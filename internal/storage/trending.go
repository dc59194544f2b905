package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"github.com/LJTian/TrendingRelay/internal/processor"
	"github.com/LJTian/TrendingRelay/internal/translator"
)

const (
	maxTitleRunes    = 512
	maxCategoryRunes = 64
	maxListLimit     = 500
)

// TrendingItem 一条热榜记录；同一平台内以内容哈希去重
type TrendingItem struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	Platform     string            `gorm:"size:64;uniqueIndex:idx_trending_platform_hash,priority:1" json:"platform"`
	Rank         int               `json:"rank"`
	Title        string            `gorm:"size:512" json:"title"`
	URL          string            `gorm:"size:1024" json:"url"`
	HotValue     *int64            `gorm:"index" json:"hotValue"`
	Category     *string           `gorm:"size:64" json:"category"`
	ContentHash  string            `gorm:"size:32;uniqueIndex:idx_trending_platform_hash,priority:2" json:"contentHash"`
	OriginalData datatypes.JSONMap `gorm:"type:jsonb" json:"originalData"`
	FetchedAt    time.Time         `gorm:"index" json:"fetchedAt"`

	CreatedAt time.Time `json:"createdAt"`
}

// TrendingTranslation 某条热榜记录在某个语言下的译文
type TrendingTranslation struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	Lang            string            `gorm:"size:8;uniqueIndex:idx_translation_lang_platform_hash,priority:1" json:"lang"`
	Platform        string            `gorm:"size:64;uniqueIndex:idx_translation_lang_platform_hash,priority:2" json:"platform"`
	ContentHash     string            `gorm:"size:32;uniqueIndex:idx_translation_lang_platform_hash,priority:3" json:"contentHash"`
	OriginalTitle   string            `gorm:"size:512" json:"originalTitle"`
	TranslatedTitle string            `gorm:"size:1024" json:"translatedTitle"`
	Rank            int               `json:"rank"`
	URL             string            `gorm:"size:1024" json:"url"`
	HotValue        *int64            `json:"hotValue"`
	Category        *string           `gorm:"size:64" json:"category"`
	OriginalData    datatypes.JSONMap `gorm:"type:jsonb" json:"originalData"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func newTrendingItem(r processor.Record) *TrendingItem {
	return &TrendingItem{
		Platform:     r.Platform,
		Rank:         r.Rank,
		Title:        truncateRunesDB(toValidUTF8(r.Title), maxTitleRunes),
		URL:          r.URL,
		HotValue:     r.HotValue,
		Category:     truncatePtr(r.Category, maxCategoryRunes),
		ContentHash:  r.ContentHash,
		OriginalData: datatypes.JSONMap(r.OriginalData),
		FetchedAt:    r.FetchedAt,
	}
}

func newTrendingTranslation(lang string, t translator.Translation) *TrendingTranslation {
	return &TrendingTranslation{
		Lang:            lang,
		Platform:        t.Platform,
		ContentHash:     t.ContentHash,
		OriginalTitle:   truncateRunesDB(toValidUTF8(t.OriginalTitle), maxTitleRunes),
		TranslatedTitle: truncateRunesDB(toValidUTF8(t.TranslatedTitle), 1024),
		Rank:            t.Rank,
		URL:             t.URL,
		HotValue:        t.HotValue,
		Category:        truncatePtr(t.Category, maxCategoryRunes),
		OriginalData:    datatypes.JSONMap(t.OriginalData),
	}
}

func truncatePtr(s *string, limit int) *string {
	if s == nil {
		return nil
	}
	v := truncateRunesDB(toValidUTF8(*s), limit)
	return &v
}

// SaveNewRecords 只写入该平台尚不存在的记录，返回真正新增的那部分（顺序与输入一致）
func (s *Store) SaveNewRecords(platform string, records []processor.Record) ([]processor.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}

	hashes := make([]string, 0, len(records))
	for _, r := range records {
		hashes = append(hashes, r.ContentHash)
	}
	var existing []string
	if err := s.DB.Model(&TrendingItem{}).
		Where("platform = ? AND content_hash IN ?", platform, hashes).
		Pluck("content_hash", &existing).Error; err != nil {
		return nil, fmt.Errorf("lookup existing hashes: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, h := range existing {
		known[h] = struct{}{}
	}

	var inserted []processor.Record
	for _, r := range records {
		if _, ok := known[r.ContentHash]; ok {
			continue
		}
		r.Platform = platform
		// 并发写入时可能被其他进程抢先插入，以 RowsAffected 判断是否真正新增
		res := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(newTrendingItem(r))
		if res.Error != nil {
			return inserted, fmt.Errorf("insert %s/%s: %w", platform, r.ContentHash, res.Error)
		}
		if res.RowsAffected == 1 {
			inserted = append(inserted, r)
		}
		known[r.ContentHash] = struct{}{}
	}
	return inserted, nil
}

// SaveTranslations 写入译文，已存在的 (lang, platform, content_hash) 忽略；返回新写入条数
func (s *Store) SaveTranslations(lang string, rows []translator.Translation) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	models := make([]*TrendingTranslation, 0, len(rows))
	for _, t := range rows {
		models = append(models, newTrendingTranslation(lang, t))
	}
	res := s.DB.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(models, 100)
	if res.Error != nil {
		return 0, fmt.Errorf("save %s translations: %w", lang, res.Error)
	}
	return int(res.RowsAffected), nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return 50
	}
	return limit
}

// ListTrending 按平台返回最新的热榜记录，使用 Redis 做 5 分钟缓存
func (s *Store) ListTrending(platform string, limit int) ([]TrendingItem, error) {
	limit = normalizeLimit(limit)
	ctx := context.Background()
	cacheKey := fmt.Sprintf("trending:list:%s:%d", platform, limit)

	var list []TrendingItem
	if s.readCache(ctx, cacheKey, &list) {
		return list, nil
	}

	db := s.DB.Model(&TrendingItem{})
	if platform != "" {
		db = db.Where("platform = ?", platform)
	}
	if err := db.Order("fetched_at DESC").Order("rank ASC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}

	if len(list) > 0 {
		s.writeCache(ctx, cacheKey, list)
	}
	return list, nil
}

// ListTranslations 返回某语言下的最新译文，platform 可为空
func (s *Store) ListTranslations(lang, platform string, limit int) ([]TrendingTranslation, error) {
	limit = normalizeLimit(limit)
	ctx := context.Background()
	cacheKey := fmt.Sprintf("translations:list:%s:%s:%d", lang, platform, limit)

	var list []TrendingTranslation
	if s.readCache(ctx, cacheKey, &list) {
		return list, nil
	}

	db := s.DB.Model(&TrendingTranslation{}).Where("lang = ?", lang)
	if platform != "" {
		db = db.Where("platform = ?", platform)
	}
	if err := db.Order("created_at DESC").Order("rank ASC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}

	if len(list) > 0 {
		s.writeCache(ctx, cacheKey, list)
	}
	return list, nil
}

// CleanupOldTrending 删除 days 天前的热榜记录与译文，返回删除总行数
func (s *Store) CleanupOldTrending(days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	items := s.DB.Where("fetched_at < ?", cutoff).Delete(&TrendingItem{})
	if items.Error != nil {
		return 0, fmt.Errorf("cleanup trending items: %w", items.Error)
	}
	trans := s.DB.Where("created_at < ?", cutoff).Delete(&TrendingTranslation{})
	if trans.Error != nil {
		return items.RowsAffected, fmt.Errorf("cleanup translations: %w", trans.Error)
	}
	return items.RowsAffected + trans.RowsAffected, nil
}
