package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/crawlers"
	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/RecoveryAshes/rescrawl/internal/utils"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// StoredImage 交给图片存储的元数据
type StoredImage struct {
	models.ImageRef
	OriginalName string
	UploaderID   int64
	CreatedAt    time.Time
}

// ImageStore 保存图片元数据, 返回图片ID
type ImageStore interface {
	SaveImage(ctx context.Context, image *StoredImage) (int64, error)
}

// Downloader 下载资源图片并保存到本地目录
type Downloader struct {
	config  Config
	client  *http.Client
	store   ImageStore
	limiter *rate.Limiter
	now     func() time.Time
}

// NewDownloader 创建图片下载器
func NewDownloader(config Config, store ImageStore) *Downloader {
	transport := crawlers.NewTransport(config.ConnectTimeout)
	transport.ResponseHeaderTimeout = config.ReadTimeout

	return &Downloader{
		config: config,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.ConnectTimeout + config.ReadTimeout,
		},
		store:   store,
		limiter: rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Concurrency),
		now:     time.Now,
	}
}

// permanentError 重试也不会成功的失败
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(format string, args ...any) error {
	return &permanentError{err: fmt.Errorf(format, args...)}
}

// DownloadAndUpload 下载并保存一组图片, 返回成功保存的图片, 顺序与输入一致
// 单张图片失败只记录日志
func (d *Downloader) DownloadAndUpload(ctx context.Context, urls []string, uploaderID int64) []models.ImageRef {
	if len(urls) == 0 {
		return nil
	}
	if uploaderID == 0 {
		uploaderID = d.config.UploaderID
	}

	results := make([]*models.ImageRef, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.config.Concurrency)

	for i, imageURL := range urls {
		g.Go(func() error {
			ref, err := d.downloadOne(gctx, imageURL, uploaderID)
			if err != nil {
				utils.Logger.Warn().Err(err).Str("url", imageURL).Msg("图片下载失败, 已跳过")
				return nil
			}
			results[i] = ref
			return nil
		})
	}
	g.Wait()

	refs := make([]models.ImageRef, 0, len(urls))
	for _, ref := range results {
		if ref != nil {
			refs = append(refs, *ref)
		}
	}
	utils.Debugf("图片下载完成: %d/%d", len(refs), len(urls))
	return refs
}

func (d *Downloader) downloadOne(ctx context.Context, imageURL string, uploaderID int64) (*models.ImageRef, error) {
	var (
		data    []byte
		lastErr error
	)

	for attempt := 1; attempt <= d.config.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.config.RetryDelay):
			}
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		data, lastErr = d.fetch(ctx, imageURL)
		if lastErr == nil {
			break
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return nil, lastErr
		}
		utils.Debugf("图片下载失败 (第%d次): %s: %v", attempt, imageURL, lastErr)
	}
	if lastErr != nil {
		return nil, fmt.Errorf("重试%d次后仍失败: %w", d.config.Attempts, lastErr)
	}

	return d.save(ctx, imageURL, data, uploaderID)
}

func (d *Downloader) fetch(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, permanent("无效的图片地址: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/*,*/*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, permanent("HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, permanent("不是图片: Content-Type=%s", contentType)
	}
	if resp.ContentLength > d.config.MaxBytes {
		return nil, permanent("图片过大: %d 字节", resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("读取图片失败: %w", err)
	}
	if int64(len(data)) > d.config.MaxBytes {
		return nil, permanent("图片超过 %d 字节", d.config.MaxBytes)
	}
	if len(data) == 0 {
		return nil, permanent("图片内容为空")
	}
	return data, nil
}

// save 写入 dir/yyyy/mm/<uuid>.<ext> 并保存元数据
func (d *Downloader) save(ctx context.Context, imageURL string, data []byte, uploaderID int64) (*models.ImageRef, error) {
	now := d.now()
	format := DetectFormat(data, imageURL)

	dir := filepath.Join(d.config.Dir, now.Format("2006"), now.Format("01"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建图片目录失败: %w", err)
	}
	filePath := filepath.Join(dir, uuid.NewString()+"."+format)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return nil, fmt.Errorf("写入图片失败: %w", err)
	}

	image := &StoredImage{
		ImageRef: models.ImageRef{
			SourceURL: imageURL,
			Path:      filePath,
			Format:    format,
			Size:      int64(len(data)),
		},
		OriginalName: OriginalName(imageURL, format),
		UploaderID:   uploaderID,
		CreatedAt:    now,
	}
	id, err := d.store.SaveImage(ctx, image)
	if err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("保存图片记录失败: %w", err)
	}
	image.ID = id
	return &image.ImageRef, nil
}
