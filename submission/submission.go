// Package submission 读取输入目录并确定提交类型
package submission

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"finproof/contribution"
)

// ErrInputMissing 输入目录不存在、为空或没有可识别的提交文件
var ErrInputMissing = errors.New("input missing")

// Submission 加载后的提交，Kind 只在这里确定一次
type Submission struct {
	Kind contribution.Kind
	Path string
	Raw  []byte

	// Claim 仅 KindCoinbase 有效；ClaimErr 非空表示内容无法解码（校验时按不匹配处理）
	Claim    *Claim
	ClaimErr error
}

// FileName 提交文件名
func (s *Submission) FileName() string {
	return filepath.Base(s.Path)
}

// Load 扫描输入目录：存在 .zip 则为 Binance 对账单，否则取字典序第一个 .json
func Load(dir string) (*Submission, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: input directory %s not found", ErrInputMissing, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInputMissing, dir, err)
	}

	var zips, jsons []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".zip":
			zips = append(zips, e.Name())
		case ".json":
			jsons = append(jsons, e.Name())
		}
	}
	sort.Strings(zips)
	sort.Strings(jsons)

	if len(zips) > 0 {
		path := filepath.Join(dir, zips[0])
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInputMissing, path, err)
		}
		return &Submission{Kind: contribution.KindBinance, Path: path, Raw: raw}, nil
	}

	if len(jsons) == 0 {
		return nil, fmt.Errorf("%w: no .json or .zip file in %s", ErrInputMissing, dir)
	}

	path := filepath.Join(dir, jsons[0])
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInputMissing, path, err)
	}
	return FromJSON(path, raw), nil
}

// FromJSON 从 JSON 内容构建提交
func FromJSON(path string, raw []byte) *Submission {
	sub := &Submission{Kind: contribution.KindCoinbase, Path: path, Raw: raw}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		sub.ClaimErr = fmt.Errorf("decode submission: %w", err)
		return sub
	}

	if isObject(top["expertise"]) && isObject(top["metadata"]) {
		sub.Kind = contribution.KindInsights
		return sub
	}

	claim, err := decodeClaim(top)
	if err != nil {
		sub.ClaimErr = err
		return sub
	}
	sub.Claim = claim
	return sub
}

func isObject(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "{")
}
