package biz

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// HashedContent 已读入并完成摘要的上传内容
type HashedContent struct {
	Hash string // SHA-256 十六进制摘要
	Size int64
	Data []byte
}

// ReadAndHash 读取整个流并计算 SHA-256 摘要。
// 摘要只依赖内容本身，与文件名无关。
func ReadAndHash(r io.Reader) (*HashedContent, error) {
	var buf bytes.Buffer
	h := sha256.New()

	size, err := io.Copy(io.MultiWriter(h, &buf), r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload stream: %w", err)
	}

	return &HashedContent{
		Hash: hex.EncodeToString(h.Sum(nil)),
		Size: size,
		Data: buf.Bytes(),
	}, nil
}

// Reader 返回内容的新读取器
func (hc *HashedContent) Reader() io.Reader {
	return bytes.NewReader(hc.Data)
}
