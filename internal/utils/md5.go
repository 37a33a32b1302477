package utils

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
)

// MD5File hashes the file at path, reading chunkSize bytes at a time so
// large sources never load fully into memory. The hash feeds the watch
// pipeline's change detection.
func MD5File(path string, chunkSize int64) (string, error) {
	if chunkSize <= 0 {
		chunkSize = 4 * 1024 * 1024
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if _, werr := h.Write(buf[:n]); werr != nil {
				return "", werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MD5Bytes hashes an in-memory buffer.
func MD5Bytes(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
