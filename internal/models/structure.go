package models

// SiteStructure 推断出的网站结构
// 每次执行创建一次,之后只读,执行结束即丢弃
type SiteStructure struct {
	ResourceLinkSelector string `json:"resource_link_selector"`
	TitleSelector        string `json:"title_selector"`
	DescriptionSelector  string `json:"description_selector"`
	DownloadLinkSelector string `json:"download_link_selector"`
	ImageSelector        string `json:"image_selector"`
	PaginationSelector   string `json:"pagination_selector"`

	// Identified 同时找到资源链接与标题选择器时为true
	Identified bool `json:"identified"`
}

// FrontierEntry 待遍历的页面
type FrontierEntry struct {
	// URL 完整的URL字符串
	URL string

	// Depth 深度层级
	//   - 0: 入口URL
	//   - 1: 从入口页面的分页发现的链接
	//   - 以此类推...
	Depth int
}
