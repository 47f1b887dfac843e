package crawlers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/utils"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultRobotsUserAgent 抓取robots.txt时使用的标识
	DefaultRobotsUserAgent = "Mozilla/5.0 (compatible; ResourcePlatformBot/1.0)"

	// RobotsAgentToken 匹配 User-agent 组时使用的爬虫标识(小写)
	RobotsAgentToken = "resourceplatformbot"
)

// RobotsConfig robots策略配置
type RobotsConfig struct {
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"` // 建连与读取超时
	TTL       time.Duration `mapstructure:"ttl"`     // 缓存有效期
}

// DefaultRobotsConfig 默认配置: 10秒超时, 24小时缓存
func DefaultRobotsConfig() RobotsConfig {
	return RobotsConfig{
		UserAgent: DefaultRobotsUserAgent,
		Timeout:   10 * time.Second,
		TTL:       24 * time.Hour,
	}
}

// RobotsRules 单个域名的robots规则
type RobotsRules struct {
	Allow      []*regexp.Regexp
	Disallow   []*regexp.Regexp
	CrawlDelay int // 秒
	FetchedAt  time.Time
}

// allowAllRules 404时使用的全部允许规则
func allowAllRules(now time.Time) *RobotsRules {
	return &RobotsRules{FetchedAt: now}
}

// Allows 判断路径是否允许访问
// 先检查Allow(任一匹配即允许),再检查Disallow(任一匹配即禁止),都不匹配则允许
func (r *RobotsRules) Allows(path string) bool {
	if path == "" {
		path = "/"
	}
	for _, re := range r.Allow {
		if re.MatchString(path) {
			return true
		}
	}
	for _, re := range r.Disallow {
		if re.MatchString(path) {
			return false
		}
	}
	return true
}

// RobotsPolicy 按域名获取、解析并缓存robots.txt
// 多个任务的worker会并发访问同一个实例
type RobotsPolicy struct {
	config RobotsConfig
	client *http.Client

	mu    sync.RWMutex
	cache map[string]*RobotsRules // scheme://host -> 规则

	// 同一域名的并发抓取只发出一次请求
	group singleflight.Group

	// now 可替换的时钟
	now func() time.Time
}

// NewRobotsPolicy 创建robots策略
func NewRobotsPolicy(config RobotsConfig) *RobotsPolicy {
	if config.UserAgent == "" {
		config.UserAgent = DefaultRobotsUserAgent
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: config.Timeout,
		}).DialContext,
		ResponseHeaderTimeout: config.Timeout,
	}

	return &RobotsPolicy{
		config: config,
		client: &http.Client{Transport: transport, Timeout: 2 * config.Timeout},
		cache:  make(map[string]*RobotsRules),
		now:    time.Now,
	}
}

// SetClock 替换时钟
func (p *RobotsPolicy) SetClock(now func() time.Time) {
	p.now = now
}

// IsAllowed 判断URL是否允许抓取
// robots.txt获取失败时放行
func (p *RobotsPolicy) IsAllowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		utils.Warnf("检查robots规则时URL无效 [%s]: %v", rawURL, err)
		return true
	}

	rules := p.rulesFor(ctx, parsed)
	if rules == nil {
		return true
	}

	allowed := rules.Allows(parsed.Path)
	if !allowed {
		utils.Debugf("robots.txt禁止访问: %s", rawURL)
	}
	return allowed
}

// CrawlDelay 返回该URL所在域名声明的抓取间隔(秒)
func (p *RobotsPolicy) CrawlDelay(ctx context.Context, rawURL string) int {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	rules := p.rulesFor(ctx, parsed)
	if rules == nil {
		return 0
	}
	return rules.CrawlDelay
}

// ClearCache 清空全部缓存
func (p *RobotsPolicy) ClearCache() {
	p.mu.Lock()
	p.cache = make(map[string]*RobotsRules)
	p.mu.Unlock()
}

// CachedDomains 返回当前缓存的域名数量
func (p *RobotsPolicy) CachedDomains() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.cache)
}

// rulesFor 读取缓存,过期或不存在时重新获取
// 获取失败返回nil且不写入缓存,下一次调用会重试
func (p *RobotsPolicy) rulesFor(ctx context.Context, u *url.URL) *RobotsRules {
	domain := u.Scheme + "://" + u.Host

	p.mu.RLock()
	rules, ok := p.cache[domain]
	p.mu.RUnlock()
	if ok && p.now().Sub(rules.FetchedAt) < p.config.TTL {
		return rules
	}

	v, _, _ := p.group.Do(domain, func() (interface{}, error) {
		fetched := p.fetch(ctx, domain)
		if fetched != nil {
			p.mu.Lock()
			p.cache[domain] = fetched
			p.mu.Unlock()
		} else {
			p.mu.Lock()
			delete(p.cache, domain)
			p.mu.Unlock()
		}
		return fetched, nil
	})

	fetched, _ := v.(*RobotsRules)
	return fetched
}

// fetch 下载并解析 {domain}/robots.txt
func (p *RobotsPolicy) fetch(ctx context.Context, domain string) *RobotsRules {
	robotsURL := domain + "/robots.txt"

	ctx, cancel := context.WithTimeout(ctx, 2*p.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		utils.Warnf("创建robots.txt请求失败 [%s]: %v", robotsURL, err)
		return nil
	}
	req.Header.Set("User-Agent", p.config.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		utils.Warnf("获取robots.txt失败 [%s]: %s", robotsURL, Format(err))
		return nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		utils.Debugf("robots.txt不存在,允许全部路径: %s", domain)
		return allowAllRules(p.now())
	case resp.StatusCode != http.StatusOK:
		utils.Warnf("获取robots.txt返回异常状态 [%s]: HTTP %d", robotsURL, resp.StatusCode)
		return nil
	}

	// robots.txt 不应超过 512KB
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		utils.Warnf("读取robots.txt失败 [%s]: %v", robotsURL, err)
		return nil
	}

	rules := ParseRobots(string(body))
	rules.FetchedAt = p.now()
	utils.Debugf("已解析robots.txt [%s]: allow=%d, disallow=%d, crawl-delay=%d",
		domain, len(rules.Allow), len(rules.Disallow), rules.CrawlDelay)
	return rules
}

// ParseRobots 解析robots.txt内容
// 只收集适用于 * 或本爬虫标识的组内的指令
func ParseRobots(content string) *RobotsRules {
	rules := &RobotsRules{}
	applicable := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		field = strings.ToLower(strings.TrimSpace(field))
		value = strings.TrimSpace(value)

		switch field {
		case "user-agent":
			applicable = value == "*" || strings.Contains(strings.ToLower(value), RobotsAgentToken)
		case "disallow":
			if applicable && value != "" {
				rules.Disallow = append(rules.Disallow, compileRobotsPattern(value))
			}
		case "allow":
			if applicable && value != "" {
				rules.Allow = append(rules.Allow, compileRobotsPattern(value))
			}
		case "crawl-delay":
			if applicable {
				delay, err := strconv.Atoi(value)
				if err != nil {
					utils.Warnf("无效的Crawl-delay值: %s", value)
					continue
				}
				rules.CrawlDelay = delay
			}
		}
	}

	return rules
}

// ConvertRobotsPattern 将robots路径规则转换为正则表达式源码
// 转义正则元字符, * 变为 .*, 末尾的 / 匹配其下全部路径, 非通配开头的规则锚定在路径起点
func ConvertRobotsPattern(path string) string {
	var b strings.Builder
	for _, r := range path {
		switch r {
		case '\\', '.', '?', '+', '|', '(', ')', '[', ']', '{', '}', '^', '$':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '*':
			b.WriteString(".*")
		default:
			b.WriteRune(r)
		}
	}

	pattern := b.String()
	if strings.HasSuffix(path, "/") {
		pattern += ".*"
	}
	if !strings.HasPrefix(pattern, ".*") {
		pattern = "^" + pattern
	}
	return pattern
}

// compileRobotsPattern 编译为整串匹配的正则,失败时退化为匹配全部
func compileRobotsPattern(path string) *regexp.Regexp {
	source := ConvertRobotsPattern(path)
	re, err := regexp.Compile("^(?:" + strings.TrimPrefix(source, "^") + ")$")
	if err != nil {
		utils.Warnf("robots规则转换失败 [%s]: %v", path, err)
		return regexp.MustCompile(".*")
	}
	return re
}

// String 便于日志输出
func (r *RobotsRules) String() string {
	return fmt.Sprintf("allow=%d disallow=%d delay=%ds", len(r.Allow), len(r.Disallow), r.CrawlDelay)
}
