// Package crawlers 提供资源网站的页面抓取、结构分析和内容提取
//
// # 抓取
//
// Fetcher 是抓取页面的统一接口, 有两种实现:
//
//   - StaticFetcher: 基于Colly, 处理 gzip/deflate/br 压缩和非UTF-8编码
//   - DynamicFetcher: 基于go-rod, 用于JavaScript渲染的列表页. 标签页由 PagePool 在任务之间复用,
//     归还时清除存储并回到 about:blank; 数量上限由 ResourceMonitor 按系统可用内存和CPU负载计算
//
// 抓取失败统一返回 *FetchError, 可交给 Classify 归类为网络/解析/验证/未知四类错误.
//
// # robots.txt
//
// RobotsPolicy 按域名缓存 robots.txt 规则24小时, 同一域名的并发请求只抓取一次.
// 获取失败时放行, 404视为全部允许.
//
// # 结构分析
//
// StructureAnalyzer 抓取入口页面, 依次尝试内置的候选选择器, 推断资源链接、标题、描述、
// 下载链接、图片和分页的选择器. 分析失败不报错, 返回未识别的空结构.
//
//	analyzer := NewStructureAnalyzer(fetcher)
//	structure := analyzer.Analyze(ctx, "https://example.com/list")
//
// # 内容提取
//
// ExtractResourceLinks / ExtractPaginationLinks 从列表页提取详情页和分页链接,
// ExtractResourceDetail 从详情页提取资源数据, 每个字段都有逐级回退规则.
//
//	page, err := fetcher.Fetch(ctx, detailURL)
//	record := ExtractResourceDetail(page, structure)
//
// # 遍历
//
// Frontier 是按深度限制的先进先出队列, VisitedSet 基于布隆过滤器记录已访问地址.
// 布隆过滤器存在误判, 少量从未访问的地址可能被跳过.
package crawlers
