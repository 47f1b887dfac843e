package core

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/crawlers"
	"github.com/RecoveryAshes/rescrawl/internal/models"
)

// 测试站点:
//
//	/list  -> 详情 1-5, 下一页 /list2
//	/list2 -> 详情 6-7, 下一页 /list3
//	/list3 -> 详情 8
//
// 详情1属于"软件"分类, 其余属于"游戏"
type testSite struct {
	*httptest.Server

	mu      sync.Mutex
	hits    map[string]int
	failing map[string]int // 路径 -> 返回的状态码
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	site := &testSite{hits: make(map[string]int), failing: make(map[string]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		site.writeList(w, []int{1, 2, 3, 4, 5}, "/list2")
	})
	mux.HandleFunc("/list2", func(w http.ResponseWriter, r *http.Request) {
		site.writeList(w, []int{6, 7}, "/list3")
	})
	mux.HandleFunc("/list3", func(w http.ResponseWriter, r *http.Request) {
		site.writeList(w, []int{8}, "")
	})
	mux.HandleFunc("/detail/", func(w http.ResponseWriter, r *http.Request) {
		var n int
		if _, err := fmt.Sscanf(strings.TrimPrefix(r.URL.Path, "/detail/"), "%d.html", &n); err != nil {
			http.NotFound(w, r)
			return
		}
		category := "游戏"
		if n == 1 {
			category = "软件"
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>Resource %d - 测试站</title></head><body>
<h1>Resource %d</h1>
<div class="category"><a href="/c/%d">%s</a></div>
<div class="description">第%d个资源的介绍文字</div>
<div class="content"><img src="/img/%d.png"></div>
<a href="https://pan.baidu.com/s/%d">百度网盘下载</a>
</body></html>`, n, n, n, category, n, n, n)
	})

	site.Server = httptest.NewServer(site.wrap(mux))
	t.Cleanup(site.Close)
	return site
}

func (s *testSite) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		code := s.failing[r.URL.Path]
		s.mu.Unlock()

		if code != 0 {
			w.WriteHeader(code)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *testSite) writeList(w http.ResponseWriter, details []int, next string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var b strings.Builder
	b.WriteString(`<html><head><title>资源列表</title></head><body><h1>资源列表</h1><ul class="list">`)
	for _, n := range details {
		fmt.Fprintf(&b, `<li><a href="/detail/%d.html">Resource Pack %d</a></li>`, n, n)
	}
	b.WriteString(`</ul>`)
	if next != "" {
		fmt.Fprintf(&b, `<div class="pagination"><a href="%s">下一页</a></div>`, next)
	}
	b.WriteString(`</body></html>`)
	w.Write([]byte(b.String()))
}

func (s *testSite) fail(path string, code int) {
	s.mu.Lock()
	s.failing[path] = code
	s.mu.Unlock()
}

func (s *testSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *testSite) detailURL(n int) string {
	return fmt.Sprintf("%s/detail/%d.html", s.URL, n)
}

func testCrawlConfig() models.CrawlConfig {
	config := models.DefaultCrawlConfig()
	config.PageTimeout = 5 * time.Second
	config.ConnectTimeout = 2 * time.Second
	config.DetailPause = 0
	config.PagePause = 0
	return config
}

func newTestFetcher() crawlers.Fetcher {
	return crawlers.NewStaticFetcher(testCrawlConfig(), models.StaticHeaders{})
}

// memorySink 内存资源服务
type memorySink struct {
	mu        sync.Mutex
	resources []*models.CrawledResource
	failOn    map[string]error
}

func newMemorySink() *memorySink {
	return &memorySink{failOn: make(map[string]error)}
}

func (m *memorySink) CreateCrawledResource(_ context.Context, resource *models.CrawledResource) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn[resource.SourceURL]; err != nil {
		return 0, err
	}
	m.resources = append(m.resources, resource)
	return int64(len(m.resources)), nil
}

func (m *memorySink) ExistsBySourceURL(_ context.Context, sourceURL string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.resources {
		if r.SourceURL == sourceURL {
			return true, nil
		}
	}
	return false, nil
}

func (m *memorySink) all() []*models.CrawledResource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.CrawledResource(nil), m.resources...)
}

func (m *memorySink) bySource(sourceURL string) *models.CrawledResource {
	for _, r := range m.all() {
		if r.SourceURL == sourceURL {
			return r
		}
	}
	return nil
}

// staticCategories 固定的默认分类
type staticCategories int64

func (c staticCategories) DefaultCategoryID(context.Context) (int64, error) {
	return int64(c), nil
}

// pathRobots 按路径禁止访问
type pathRobots struct {
	disallowed map[string]bool
	delay      int
}

func (p pathRobots) IsAllowed(_ context.Context, rawURL string) bool {
	for path := range p.disallowed {
		if strings.HasSuffix(rawURL, path) {
			return false
		}
	}
	return true
}

func (p pathRobots) CrawlDelay(context.Context, string) int {
	return p.delay
}

// fakeImages 每个地址返回一个递增ID
type fakeImages struct {
	mu     sync.Mutex
	nextID int64
	seen   []string
}

func (f *fakeImages) DownloadAndUpload(_ context.Context, urls []string, uploaderID int64) []models.ImageRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	refs := make([]models.ImageRef, 0, len(urls))
	for _, u := range urls {
		f.nextID++
		f.seen = append(f.seen, u)
		refs = append(refs, models.ImageRef{ID: 100 + f.nextID, SourceURL: u})
	}
	return refs
}

// memoryTasks 内存任务存储
type memoryTasks struct {
	mu    sync.Mutex
	tasks map[int64]*models.CrawlerTask
}

func newMemoryTasks(tasks ...*models.CrawlerTask) *memoryTasks {
	m := &memoryTasks{tasks: make(map[int64]*models.CrawlerTask)}
	for _, task := range tasks {
		m.tasks[task.ID] = task
	}
	return m
}

func (m *memoryTasks) GetTask(_ context.Context, id int64) (*models.CrawlerTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (m *memoryTasks) UpdateTask(_ context.Context, task *models.CrawlerTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *memoryTasks) ListTasks(_ context.Context, enabledOnly bool) ([]*models.CrawlerTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CrawlerTask
	for _, task := range m.tasks {
		if enabledOnly && task.Status != models.TaskStatusEnabled {
			continue
		}
		copied := *task
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memoryTasks) set(task *models.CrawlerTask) {
	m.mu.Lock()
	m.tasks[task.ID] = task
	m.mu.Unlock()
}

// memoryLogs 内存执行日志
type memoryLogs struct {
	mu      sync.Mutex
	created []models.CrawlLog
	updated []models.CrawlLog
	failAll error
}

func (m *memoryLogs) CreateLog(_ context.Context, log *models.CrawlLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	log.ID = int64(len(m.created) + 1)
	m.created = append(m.created, *log)
	return nil
}

func (m *memoryLogs) UpdateLog(_ context.Context, log *models.CrawlLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	m.updated = append(m.updated, *log)
	return nil
}

func (m *memoryLogs) createdCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

func (m *memoryLogs) lastUpdated() (models.CrawlLog, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.updated) == 0 {
		return models.CrawlLog{}, false
	}
	return m.updated[len(m.updated)-1], true
}

func newTestTask(site *testSite, maxDepth int) *models.CrawlerTask {
	return &models.CrawlerTask{
		ID:              1,
		Name:            "测试站",
		TargetURL:       site.URL + "/list",
		Status:          models.TaskStatusEnabled,
		MaxDepth:        maxDepth,
		IntelligentMode: true,
	}
}
