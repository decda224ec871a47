package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
	"github.com/nexus-academy/catalog-service/internal/storage"
	"github.com/nexus-academy/catalog-service/internal/validator"
)

const (
	coverImagePrefix = "insights"
	maxSlugAttempts  = 50
)

var (
	slugStrip    = regexp.MustCompile(`[^a-z0-9\x{AC00}-\x{D7A3}\s-]`)
	slugSpaces   = regexp.MustCompile(`\s+`)
	slugHyphens  = regexp.MustCompile(`-+`)
	allowedCover = map[string]bool{"image/jpeg": true, "image/png": true, "image/webp": true, "image/gif": true}
)

type postService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	storage   storage.ObjectStorage
	markdown  goldmark.Markdown
}

func NewPostService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, objectStorage storage.ObjectStorage) PostService {
	if objectStorage == nil {
		objectStorage = storage.DisabledStorage{}
	}
	return &postService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		storage:   objectStorage,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// ===== READS =====

func (s *postService) List(ctx context.Context, filters repositories.PostFilters) (*PostListResponse, error) {
	var page int
	filters.Limit, filters.Offset, page = normalizePage(filters.Limit, filters.Offset)
	filters.Query = strings.TrimSpace(filters.Query)

	posts, total, err := s.repo.Post().List(ctx, nil, filters)
	if err != nil {
		return nil, upstream("list posts", err)
	}

	return &PostListResponse{Posts: posts, Total: total, Page: page, Size: filters.Limit}, nil
}

func (s *postService) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrPostNotFound
	}

	post, err := s.repo.Post().GetBySlug(ctx, nil, slug)
	if err != nil {
		return nil, classify(err, ErrPostNotFound, "get post")
	}
	return post, nil
}

// ===== ADMIN OPERATIONS =====

func (s *postService) Create(ctx context.Context, req *CreatePostRequest, actor *models.User) (*models.Post, error) {
	if err := requireAdmin(actor, "post", "create"); err != nil {
		return nil, err
	}
	s.logger.Info("Creating post", "actor_id", actor.ID, "title", req.Title)

	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	slug, err := s.uniqueSlug(ctx, GenerateSlug(req.Title), nil)
	if err != nil {
		return nil, err
	}

	rendered, err := s.render(req.Content)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:       strings.TrimSpace(req.Title),
		Slug:        slug,
		Excerpt:     strings.TrimSpace(req.Excerpt),
		Content:     req.Content,
		ContentHTML: rendered,
		Category:    strings.TrimSpace(req.Category),
		Tags:        encodeTags(req.Tags),
		AuthorID:    actor.ID,
		AuthorName:  actor.Name,
	}

	if err := s.repo.Post().Create(ctx, nil, post); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrPostSlugTaken
		}
		return nil, upstream("create post", err)
	}

	s.logger.Info("Post created successfully", "post_id", post.ID, "slug", post.Slug)
	return post, nil
}

// Update keeps the slug so published links stay valid.
func (s *postService) Update(ctx context.Context, id uint, req *UpdatePostRequest, actor *models.User) (*models.Post, error) {
	if err := requireAdmin(actor, "post", "update"); err != nil {
		return nil, err
	}
	s.logger.Info("Updating post", "post_id", id, "actor_id", actor.ID)

	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	post, err := s.repo.Post().GetByID(ctx, nil, id)
	if err != nil {
		return nil, classify(err, ErrPostNotFound, "get post")
	}

	if req.Title != nil {
		post.Title = strings.TrimSpace(*req.Title)
	}
	if req.Excerpt != nil {
		post.Excerpt = strings.TrimSpace(*req.Excerpt)
	}
	if req.Content != nil {
		rendered, err := s.render(*req.Content)
		if err != nil {
			return nil, err
		}
		post.Content = *req.Content
		post.ContentHTML = rendered
	}
	if req.Category != nil {
		post.Category = strings.TrimSpace(*req.Category)
	}
	if req.Tags != nil {
		post.Tags = encodeTags(req.Tags)
	}

	if err := s.repo.Post().Update(ctx, nil, post); err != nil {
		return nil, classify(err, ErrPostNotFound, "update post")
	}

	return post, nil
}

func (s *postService) Delete(ctx context.Context, id uint, actor *models.User) error {
	if err := requireAdmin(actor, "post", "delete"); err != nil {
		return err
	}

	post, err := s.repo.Post().GetByID(ctx, nil, id)
	if err != nil {
		return classify(err, ErrPostNotFound, "get post")
	}

	if err := s.repo.Post().Delete(ctx, nil, id); err != nil {
		return classify(err, ErrPostNotFound, "delete post")
	}

	if post.CoverImageKey != nil {
		s.removeObject(ctx, *post.CoverImageKey)
	}

	s.logger.Info("Post deleted", "post_id", id, "actor_id", actor.ID)
	return nil
}

// UploadCover stores a new cover image and drops the previous object.
func (s *postService) UploadCover(ctx context.Context, id uint, filename, contentType string, body io.Reader, actor *models.User) (*models.Post, error) {
	if err := requireAdmin(actor, "post", "upload_cover"); err != nil {
		return nil, err
	}

	if !allowedCover[contentType] {
		return nil, validator.ValidationErrors{{
			Field:   "file",
			Message: "must be a jpeg, png, webp or gif image",
			Value:   contentType,
			Rule:    "content_type",
		}}
	}

	post, err := s.repo.Post().GetByID(ctx, nil, id)
	if err != nil {
		return nil, classify(err, ErrPostNotFound, "get post")
	}

	key, err := s.storage.Upload(ctx, coverImagePrefix, filename, body, contentType)
	if err != nil {
		return nil, upstream("upload cover", err)
	}

	previous := post.CoverImageKey
	url := s.storage.URL(key)
	post.CoverImageKey = &key
	post.CoverImageURL = &url

	if err := s.repo.Post().Update(ctx, nil, post); err != nil {
		s.removeObject(ctx, key)
		return nil, classify(err, ErrPostNotFound, "update post")
	}

	if previous != nil && *previous != key {
		s.removeObject(ctx, *previous)
	}

	s.logger.Info("Post cover uploaded", "post_id", id, "key", key)
	return post, nil
}

func (s *postService) removeObject(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to delete object", "key", key, "error", err)
	}
}

func (s *postService) render(content string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// uniqueSlug appends -2, -3, ... until the slug is free.
func (s *postService) uniqueSlug(ctx context.Context, base string, excludeID *uint) (string, error) {
	candidate := base
	for n := 2; n < maxSlugAttempts+2; n++ {
		exists, err := s.repo.Post().ExistsBySlug(ctx, nil, candidate, excludeID)
		if err != nil {
			return "", upstream("check post slug", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return "", ErrPostSlugTaken
}

// GenerateSlug lower-cases the title and keeps latin letters, digits, Hangul
// syllables and hyphens. Whitespace runs become a single hyphen.
func GenerateSlug(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugStrip.ReplaceAllString(slug, "")
	slug = slugSpaces.ReplaceAllString(slug, "-")
	slug = slugHyphens.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "post"
	}
	return slug
}

func encodeTags(tags []string) datatypes.JSON {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	data, _ := json.Marshal(clean)
	return datatypes.JSON(data)
}
