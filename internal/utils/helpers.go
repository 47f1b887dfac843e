package utils

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/RecoveryAshes/rescrawl/internal/models"
)

// TaskLine 任务导入文件中的一行
type TaskLine struct {
	URL  string
	Name string
}

// ReadTaskFile 读取任务导入文件
// 每行 "地址 [名称]", 地址和名称之间用空白或逗号分隔; 空行和 # 开头的行被忽略;
// 格式无效的地址记录警告后跳过. 未写名称时使用主机名
func ReadTaskFile(path string) ([]TaskLine, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开任务文件失败: %w", err)
	}
	defer file.Close()

	var lines []TaskLine
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rawURL, name := splitTaskLine(line)
		if err := models.ValidateURL(rawURL); err != nil {
			Warnf("跳过无效URL (行 %d): %s - %v", lineNum, rawURL, err)
			continue
		}
		if name == "" {
			if u, err := url.Parse(rawURL); err == nil {
				name = u.Hostname()
			}
		}
		lines = append(lines, TaskLine{URL: rawURL, Name: name})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取任务文件失败: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("任务文件中没有有效的URL")
	}

	Infof("从文件加载了 %d 个任务", len(lines))
	return lines, nil
}

func splitTaskLine(line string) (string, string) {
	i := strings.IndexAny(line, " \t,")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(strings.Trim(strings.TrimSpace(line[i:]), ","))
}
