package source

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/postflow/internal/model"
)

// ProjectStore はインポート対象プロジェクトの取得と、検出したフィードURLの保存に使う。
type ProjectStore interface {
	FindByID(ctx context.Context, id string) (*model.Project, error)
	Update(ctx context.Context, project *model.Project) error
}

// ContentStore はインポートした記事の保存に使う。
type ContentStore interface {
	Create(ctx context.Context, item *model.ContentItem) error
	ExistsBySourceGUID(ctx context.Context, projectID, guid string) (bool, error)
}

// TextSanitizer は記事本文を投稿用のプレーンテキストにする。
type TextSanitizer interface {
	PlainText(rawHTML string) string
}

// ImportRecorder はインポート結果をメトリクスに記録する。
type ImportRecorder interface {
	RecordImport(imported, skipped int)
	RecordImportFailure(reason string)
}

// Config はフィード取得の上限値。
type Config struct {
	Timeout     time.Duration
	MaxBodySize int64
	// MaxEntries は1回のインポートで取り込む記事数の上限。0以下で無制限。
	MaxEntries int
}

// DefaultConfig はデフォルトのインポート設定を返す。
func DefaultConfig() Config {
	return Config{
		Timeout:     10 * time.Second,
		MaxBodySize: 5 * 1024 * 1024,
		MaxEntries:  50,
	}
}

// Result はインポート1回分の結果。
type Result struct {
	FeedURL  string
	Imported []*model.ContentItem
	Skipped  int
}

const feedAccept = "application/rss+xml, application/atom+xml, application/xml, text/xml, */*;q=0.1"

// Importer はプロジェクトのブログフィードから記事を未予約の投稿として取り込む。
type Importer struct {
	projects  ProjectStore
	contents  ContentStore
	detector  *Detector
	guard     URLGuard
	sanitizer TextSanitizer
	recorder  ImportRecorder
	logger    *slog.Logger
	config    Config
	now       func() time.Time
}

// NewImporter はImporterを生成する。recorderはnilでもよい。
func NewImporter(
	projects ProjectStore,
	contents ContentStore,
	guard URLGuard,
	sanitizer TextSanitizer,
	recorder ImportRecorder,
	logger *slog.Logger,
	config Config,
) *Importer {
	return &Importer{
		projects:  projects,
		contents:  contents,
		detector:  NewDetector(guard, config),
		guard:     guard,
		sanitizer: sanitizer,
		recorder:  recorder,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// Import はユーザーが所有するプロジェクトにフィードの新着記事を取り込む。
// フィードURLが未登録の場合はWebサイトURLから検出し、プロジェクトに保存する。
// 取り込み済み（GUIDまたはリンクが一致）の記事はスキップする。
func (im *Importer) Import(ctx context.Context, userID, projectID string) (*Result, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	project, err := im.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if project == nil || project.UserID != userID {
		return nil, model.NewProjectNotFoundError(projectID)
	}

	result, err := im.importProject(ctx, project)
	if err != nil {
		im.recordFailure(err)
		return nil, err
	}
	if im.recorder != nil {
		im.recorder.RecordImport(len(result.Imported), result.Skipped)
	}
	return result, nil
}

func (im *Importer) importProject(ctx context.Context, project *model.Project) (*Result, error) {
	feedURL, err := im.resolveFeedURL(ctx, project)
	if err != nil {
		return nil, err
	}

	p, err := fetchPage(ctx, im.guard, fetchConfig{timeout: im.config.Timeout, maxBodySize: im.config.MaxBodySize}, feedURL, feedAccept)
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().ParseString(string(p.body))
	if err != nil {
		im.logger.Warn("フィードのパースに失敗しました",
			slog.String("project_id", project.ID),
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewParseFailedError()
	}

	entries := toEntries(parsed.Items)
	if im.config.MaxEntries > 0 && len(entries) > im.config.MaxEntries {
		entries = entries[len(entries)-im.config.MaxEntries:]
	}

	result := &Result{FeedURL: feedURL}
	for i, e := range entries {
		key := entryKey(e)
		if key == "" {
			result.Skipped++
			continue
		}
		exists, err := im.contents.ExistsBySourceGUID(ctx, project.ID, key)
		if err != nil {
			return nil, fmt.Errorf("インポート済み記事の確認に失敗しました: %w", err)
		}
		if exists {
			result.Skipped++
			continue
		}

		// 同一時刻だと並び順がID依存になるため、フィード順を作成日時に反映する
		createdAt := im.now().Add(time.Duration(i) * time.Microsecond)
		item := &model.ContentItem{
			ID:         uuid.NewString(),
			ProjectID:  project.ID,
			Kind:       model.ContentKindPost,
			Title:      im.sanitizer.PlainText(e.Title),
			Body:       im.sanitizer.PlainText(e.Content),
			SourceURL:  e.Link,
			SourceGUID: key,
			CreatedAt:  createdAt,
			UpdatedAt:  createdAt,
		}
		if err := im.contents.Create(ctx, item); err != nil {
			return nil, fmt.Errorf("インポートした記事の保存に失敗しました: %w", err)
		}
		result.Imported = append(result.Imported, item)
	}

	im.logger.Info("フィードのインポートが完了しました",
		slog.String("project_id", project.ID),
		slog.String("feed_url", feedURL),
		slog.Int("entries", len(entries)),
		slog.Int("imported", len(result.Imported)),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// resolveFeedURL は登録済みのフィードURLを返す。
// 未登録ならWebサイトURLから検出して保存する。保存の失敗はインポートを止めない。
func (im *Importer) resolveFeedURL(ctx context.Context, project *model.Project) (string, error) {
	if project.FeedURL != "" {
		return project.FeedURL, nil
	}
	if project.WebsiteURL == "" {
		return "", model.NewFeedNotDetectedError(project.Name)
	}

	feedURL, err := im.detector.Detect(ctx, project.WebsiteURL)
	if err != nil {
		return "", err
	}

	project.FeedURL = feedURL
	project.UpdatedAt = im.now()
	if err := im.projects.Update(ctx, project); err != nil {
		im.logger.Error("検出したフィードURLの保存に失敗しました",
			slog.String("project_id", project.ID),
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
	}
	return feedURL, nil
}

func (im *Importer) recordFailure(err error) {
	if im.recorder == nil {
		return
	}
	reason := "internal"
	if apiErr, ok := err.(*model.APIError); ok {
		reason = strings.ToLower(apiErr.Code)
	}
	im.recorder.RecordImportFailure(reason)
}

// toEntries はgofeedの記事を公開日時の古い順に並べたParsedEntryに変換する。
// 公開日時のない記事はフィード内の順序のまま末尾に置く。
func toEntries(items []*gofeed.Item) []model.ParsedEntry {
	entries := make([]model.ParsedEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		e := model.ParsedEntry{
			GUID:    strings.TrimSpace(item.GUID),
			Title:   item.Title,
			Link:    strings.TrimSpace(item.Link),
			Content: item.Content,
		}
		if e.Content == "" {
			e.Content = item.Description
		}
		switch {
		case item.PublishedParsed != nil:
			t := *item.PublishedParsed
			e.PublishedAt = &t
		case item.UpdatedParsed != nil:
			t := *item.UpdatedParsed
			e.PublishedAt = &t
		}
		if e.Link == "" && (strings.HasPrefix(e.GUID, "http://") || strings.HasPrefix(e.GUID, "https://")) {
			e.Link = e.GUID
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].PublishedAt, entries[j].PublishedAt
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.Before(*b)
	})
	return entries
}

// entryKey は重複判定に使うキー。GUIDがなければリンクを使う。
func entryKey(e model.ParsedEntry) string {
	if e.GUID != "" {
		return e.GUID
	}
	return e.Link
}
