package models

// ResourceRecord 详情页解析结果
type ResourceRecord struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	CategoryHint  string   `json:"category_hint,omitempty"`
	DownloadLinks []string `json:"download_links"`
	ImageURLs     []string `json:"image_urls"`
	SourceURL     string   `json:"source_url"`
}

// DownloadLink 带名称和类型的下载链接
type DownloadLink struct {
	URL  string `json:"url"`
	Name string `json:"name"` // 如 百度网盘
	Type string `json:"type"` // 如 baidu
}

// ImageRef 已保存图片的引用
type ImageRef struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
	Path      string `json:"path"`
	Format    string `json:"format"`
	Size      int64  `json:"size"`
}

// CrawledResource 交给资源服务创建的数据
type CrawledResource struct {
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	CategoryID   int64          `json:"category_id"`
	TaskID       int64          `json:"task_id"`
	SourceURL    string         `json:"source_url"`
	Links        []DownloadLink `json:"links"`
	ImageIDs     []int64        `json:"image_ids"`
	CoverImageID int64          `json:"cover_image_id,omitempty"`
	Status       int            `json:"status"` // 0 待审核
}

// ProgressSnapshot 运行中任务的进度
type ProgressSnapshot struct {
	RunID     string `json:"run_id"`
	State     string `json:"state"`
	Crawled   int    `json:"crawled"`
	Success   int    `json:"success"`
	Failed    int    `json:"failed"`
	Frontier  int    `json:"frontier"`
	PagesDone int    `json:"pages_done"`
}
