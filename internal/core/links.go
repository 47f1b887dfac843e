package core

import (
	"strings"

	"github.com/RecoveryAshes/rescrawl/internal/models"
)

type linkRule struct {
	markers []string
	name    string
	kind    string
}

// 按顺序匹配, 第一个命中的规则生效
var linkRules = []linkRule{
	{[]string{"pan.baidu.com"}, "百度网盘", "baidu"},
	{[]string{"aliyundrive.com", "alipan.com"}, "阿里云盘", "aliyun"},
	{[]string{"quark.cn"}, "夸克网盘", "quark"},
	{[]string{"lanzou"}, "蓝奏云", "lanzou"},
	{[]string{"xunlei.com", "thunder"}, "迅雷下载", "xunlei"},
	{[]string{"115.com"}, "115网盘", ""},
	{[]string{"weiyun.com"}, "微云", ""},
	{[]string{"onedrive", "sharepoint"}, "OneDrive", ""},
	{[]string{"dropbox.com"}, "Dropbox", ""},
	{[]string{"github.com", "gitee.com"}, "代码仓库", ""},
	{[]string{"mega.nz"}, "MEGA网盘", ""},
}

var (
	archiveSuffixes = []string{".zip", ".rar", ".7z", ".tar.gz"}
	// 直链类型还包括安装包
	directSuffixes = append(append([]string{}, archiveSuffixes...), ".exe", ".dmg", ".apk", ".deb")
)

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

func matchRule(lower string) (linkRule, bool) {
	for _, rule := range linkRules {
		for _, marker := range rule.markers {
			if strings.Contains(lower, marker) {
				return rule, true
			}
		}
	}
	return linkRule{}, false
}

// DetermineLinkName 根据域名和扩展名给出下载链接的显示名称
func DetermineLinkName(downloadURL string) string {
	if downloadURL == "" {
		return "下载链接"
	}
	lower := strings.ToLower(downloadURL)
	if rule, ok := matchRule(lower); ok {
		return rule.name
	}
	if hasAnySuffix(lower, archiveSuffixes) {
		return "直链下载"
	}
	return "下载链接"
}

// DetermineLinkType 下载链接类型: baidu/aliyun/quark/lanzou/xunlei/direct, 其余为 guanfang
func DetermineLinkType(downloadURL string) string {
	if downloadURL == "" {
		return "direct"
	}
	lower := strings.ToLower(downloadURL)
	if rule, ok := matchRule(lower); ok && rule.kind != "" {
		return rule.kind
	}
	if hasAnySuffix(lower, directSuffixes) {
		return "direct"
	}
	return "guanfang"
}

// BuildDownloadLinks 为每个下载地址补全名称和类型
func BuildDownloadLinks(urls []string) []models.DownloadLink {
	links := make([]models.DownloadLink, 0, len(urls))
	for _, u := range urls {
		links = append(links, models.DownloadLink{
			URL:  u,
			Name: DetermineLinkName(u),
			Type: DetermineLinkType(u),
		})
	}
	return links
}
