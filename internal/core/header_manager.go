package core

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/RecoveryAshes/rescrawl/internal/utils"
)

// DefaultUserAgent 抓取列表页和详情页时使用的桌面浏览器标识
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

// headerLayer 一个来源的头部
type headerLayer struct {
	source string
	header http.Header
}

// HeaderManager 页面请求头部, 实现 models.HeaderProvider
// 后面的层覆盖前面的层: 默认 < 配置文件 < 命令行
type HeaderManager struct {
	layers    []headerLayer
	validator *utils.HeaderValidator
	redactor  *utils.HeaderRedactor

	once      sync.Once
	merged    http.Header
	mergedErr error
}

// NewHeaderManager configHeaders 来自配置文件的 headers 段, cliHeaders 为 "Name: Value" 形式的命令行参数
func NewHeaderManager(configHeaders map[string]string, cliHeaders []string) (*HeaderManager, error) {
	cli, err := models.CliHeaders(cliHeaders).Parse()
	if err != nil {
		return nil, err
	}

	config := make(http.Header, len(configHeaders))
	for name, value := range configHeaders {
		config.Set(name, value)
	}

	hm := &HeaderManager{
		layers: []headerLayer{
			{"默认", defaultHeaders()},
			{"配置文件", config},
			{"命令行", cli},
		},
		validator: utils.NewHeaderValidator(),
		redactor:  utils.NewHeaderRedactor(),
	}
	if len(config) > 0 {
		utils.Debugf("加载%d个HTTP头部配置: %s", len(config), hm.redactor.RedactToString(config))
	}
	return hm, nil
}

func defaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      {DefaultUserAgent},
		"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Language": {"zh-CN,zh;q=0.9,en;q=0.8"},
		"Accept-Encoding": {"gzip, deflate, br"},
	}
}

// Validate 逐层验证, 错误中注明来源
func (hm *HeaderManager) Validate() error {
	for _, layer := range hm.layers {
		if err := hm.validator.Validate(layer.header); err != nil {
			return fmt.Errorf("%s头部无效: %w", layer.source, err)
		}
	}
	utils.Debugf("所有HTTP头部验证通过")
	return nil
}

// GetMergedHeaders 合并后的头部, 不做验证
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for _, layer := range hm.layers {
		for name, values := range layer.header {
			result[name] = values
		}
	}
	return result
}

// GetSafeHeaders 脱敏后的头部, 用于日志和显示
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}

// GetHeaders 第一次调用时验证, 结果和错误都会缓存; 每次返回副本
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	hm.once.Do(func() {
		if err := hm.Validate(); err != nil {
			hm.mergedErr = err
			return
		}
		hm.merged = hm.GetMergedHeaders()
	})
	if hm.mergedErr != nil {
		return nil, hm.mergedErr
	}
	return hm.merged.Clone(), nil
}
