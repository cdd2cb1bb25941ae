// Package vectordb 实现一个嵌入式的向量存储：
// 记录常驻内存，每次写操作同步落盘为单个 JSON 索引文件，
// 相似度查询对全部记录做线性扫描的余弦相似度计算。
package vectordb

import (
	"encoding/json"
	"errors"
	"fmt"
	"ideasystemx-go/pkg/errs"
	"ideasystemx-go/pkg/log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// IndexFileName 是存储目录下的索引文件名。
const IndexFileName = "index.json"

// VectorRecord 是向量存储中的一条记录。
type VectorRecord struct {
	ID        string                 `json:"id"`
	Vector    []float32              `json:"vector"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp int64                  `json:"timestamp"` // Unix 毫秒
}

// SimilarityResult 是相似度查询的一条命中结果。
type SimilarityResult struct {
	ID         string                 `json:"id"`
	Similarity float64                `json:"similarity"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// indexFile 是索引文件的磁盘格式。
type indexFile struct {
	Dimensions int            `json:"dimensions"`
	Vectors    []VectorRecord `json:"vectors"`
}

// Store 是线程安全的向量存储。
type Store struct {
	mu         sync.RWMutex
	dir        string
	dimensions int
	records    []VectorRecord
	positions  map[string]int // id -> records 下标
	now        func() time.Time
}

// Open 打开（必要时创建）dir 下的向量索引。
// 已有索引的维度与 dimensions 不一致且非空时返回 ErrDimensionMismatch。
func Open(dir string, dimensions int) (*Store, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("vectordb: dimensions must be positive, got %d: %w", dimensions, errs.ErrValidation)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("vectordb: create dir %s: %v: %w", dir, err, errs.ErrPersistence)
	}

	s := &Store{
		dir:        dir,
		dimensions: dimensions,
		positions:  make(map[string]int),
		now:        time.Now,
	}

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	if records == nil {
		// 首次打开，写入空索引
		if err := s.flush(nil); err != nil {
			return nil, err
		}
	}
	s.swap(records)
	log.Infof("[VectorDB] 向量索引已加载, path: %s, dimensions: %d, records: %d", s.indexPath(), dimensions, len(records))
	return s, nil
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, IndexFileName)
}

// load 读取索引文件；文件不存在时返回 (nil, nil)。
func (s *Store) load() ([]VectorRecord, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("vectordb: read index: %v: %w", err, errs.ErrPersistence)
	}

	var idx indexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("vectordb: decode index: %v: %w", err, errs.ErrPersistence)
	}
	if len(idx.Vectors) > 0 && idx.Dimensions != 0 && idx.Dimensions != s.dimensions {
		return nil, fmt.Errorf("vectordb: index has dimensions %d, store configured for %d: %w",
			idx.Dimensions, s.dimensions, errs.ErrDimensionMismatch)
	}

	records := make([]VectorRecord, 0, len(idx.Vectors))
	for _, r := range idx.Vectors {
		if len(r.Vector) != s.dimensions {
			log.Warnf("[VectorDB] 跳过维度不一致的记录, id: %s, len: %d", r.ID, len(r.Vector))
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// flush 把完整记录集写入临时文件后原子替换索引文件。
func (s *Store) flush(records []VectorRecord) error {
	if records == nil {
		records = []VectorRecord{}
	}
	data, err := json.Marshal(indexFile{Dimensions: s.dimensions, Vectors: records})
	if err != nil {
		return fmt.Errorf("vectordb: encode index: %v: %w", err, errs.ErrPersistence)
	}

	tmp, err := os.CreateTemp(s.dir, IndexFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("vectordb: create temp file: %v: %w", err, errs.ErrPersistence)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // rename 成功后为 no-op

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("vectordb: write index: %v: %w", err, errs.ErrPersistence)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("vectordb: sync index: %v: %w", err, errs.ErrPersistence)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vectordb: close index: %v: %w", err, errs.ErrPersistence)
	}
	if err := os.Rename(tmpName, s.indexPath()); err != nil {
		return fmt.Errorf("vectordb: replace index: %v: %w", err, errs.ErrPersistence)
	}
	return nil
}

// swap 替换内存中的记录集并重建位置索引。调用方需持有写锁（Open 除外）。
func (s *Store) swap(records []VectorRecord) {
	positions := make(map[string]int, len(records))
	for i, r := range records {
		positions[r.ID] = i
	}
	s.records = records
	s.positions = positions
}

// Dimensions 返回存储的固定维度。
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Put 插入或替换 id 对应的记录，并在返回前同步落盘。
// 替换时保留原有的存储位置，以保证相同相似度时的排序稳定。
func (s *Store) Put(id string, vector []float32, metadata map[string]interface{}) (VectorRecord, error) {
	if id == "" {
		return VectorRecord{}, fmt.Errorf("vectordb: empty id: %w", errs.ErrValidation)
	}
	if len(vector) != s.dimensions {
		return VectorRecord{}, fmt.Errorf("vectordb: vector length %d, want %d: %w",
			len(vector), s.dimensions, errs.ErrDimensionMismatch)
	}

	record := VectorRecord{
		ID:        id,
		Vector:    append([]float32(nil), vector...),
		Metadata:  copyMetadata(metadata),
		Timestamp: s.now().UnixMilli(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]VectorRecord, len(s.records), len(s.records)+1)
	copy(next, s.records)
	if pos, ok := s.positions[id]; ok {
		next[pos] = record
	} else {
		next = append(next, record)
	}

	if err := s.flush(next); err != nil {
		return VectorRecord{}, err
	}
	s.swap(next)
	return cloneRecord(record), nil
}

// Get 返回 id 对应记录的副本。
func (s *Store) Get(id string) (VectorRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.positions[id]
	if !ok {
		return VectorRecord{}, false
	}
	return cloneRecord(s.records[pos]), true
}

// Delete 删除 id 对应的记录；记录存在并被删除时返回 true。
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[id]
	if !ok {
		return false, nil
	}

	next := make([]VectorRecord, 0, len(s.records)-1)
	next = append(next, s.records[:pos]...)
	next = append(next, s.records[pos+1:]...)

	if err := s.flush(next); err != nil {
		return false, err
	}
	s.swap(next)
	return true, nil
}

// Clear 删除全部记录并落盘空索引。
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flush(nil); err != nil {
		return err
	}
	s.swap(nil)
	return nil
}

// Count 返回记录数。
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// All 按存储顺序返回全部记录的副本。
func (s *Store) All() []VectorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]VectorRecord, len(s.records))
	for i, r := range s.records {
		out[i] = cloneRecord(r)
	}
	return out
}

// SearchSimilar 返回与 query 最相似的至多 limit 条记录，按相似度降序排列，
// 相似度低于 threshold 的记录被过滤。limit <= 0 表示不截断。
func (s *Store) SearchSimilar(query []float32, limit int, threshold float64) ([]SimilarityResult, error) {
	return s.SearchSimilarWhere(query, limit, threshold, nil)
}

// SearchSimilarWhere 与 SearchSimilar 相同，但只考虑元数据满足 where 中全部键值的记录。
// 元数据值按 fmt.Sprint 转为字符串后比较。
func (s *Store) SearchSimilarWhere(query []float32, limit int, threshold float64, where map[string]string) ([]SimilarityResult, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("vectordb: query length %d, want %d: %w",
			len(query), s.dimensions, errs.ErrDimensionMismatch)
	}

	s.mu.RLock()
	results := make([]SimilarityResult, 0, len(s.records))
	for _, r := range s.records {
		if !matches(r.Metadata, where) {
			continue
		}
		sim := CosineSimilarity(query, r.Vector)
		if sim < threshold {
			continue
		}
		results = append(results, SimilarityResult{
			ID:         r.ID,
			Similarity: sim,
			Metadata:   copyMetadata(r.Metadata),
		})
	}
	s.mu.RUnlock()

	// 稳定排序：相似度相同的记录保持存储顺序
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Close 释放存储。所有写操作都已同步落盘，这里只清空内存。
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swap(nil)
	return nil
}

func matches(metadata map[string]interface{}, where map[string]string) bool {
	for k, want := range where {
		v, ok := metadata[k]
		if !ok || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

func copyMetadata(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneRecord(r VectorRecord) VectorRecord {
	r.Vector = append([]float32(nil), r.Vector...)
	r.Metadata = copyMetadata(r.Metadata)
	return r
}
