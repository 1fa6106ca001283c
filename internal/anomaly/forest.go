// Package anomaly реализует ансамбль изолирующих деревьев для поиска
// аномальной загрузки техники.
//
// Скор отрицательный для аномалий: decision = score_samples - offset, где offset -
// квантиль обучающих скоров уровня contamination
package anomaly

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"equipment-insight/internal/models"
)

const (
	// DefaultEstimators размер ансамбля
	DefaultEstimators = 150
	// DefaultMaxSamples предел подвыборки на дерево ("auto" = min(256, n))
	DefaultMaxSamples = 256
	// DefaultMaxFeatures доля признаков в подпространстве дерева
	DefaultMaxFeatures = 0.8
	// DefaultContamination ожидаемая доля аномалий
	DefaultContamination = 0.05
	// DefaultSeed зерно генератора
	DefaultSeed = 42

	eulerGamma = 0.5772156649015329
	nodeBytes  = 48
)

// Config гиперпараметры ансамбля
type Config struct {
	Estimators    int
	MaxSamples    int
	MaxFeatures   float64
	Contamination float64
	Workers       int
	Seed          int64
	// MemoryLimit бюджет памяти на обучение в байтах, 0 - без ограничения
	MemoryLimit int64
}

// DefaultConfig конфигурация по умолчанию
func DefaultConfig() Config {
	return Config{
		Estimators:    DefaultEstimators,
		MaxSamples:    DefaultMaxSamples,
		MaxFeatures:   DefaultMaxFeatures,
		Contamination: DefaultContamination,
		Workers:       runtime.NumCPU(),
		Seed:          DefaultSeed,
	}
}

func (c Config) validate() error {
	switch {
	case c.Estimators <= 0:
		return fmt.Errorf("estimators must be positive, got %d", c.Estimators)
	case c.MaxSamples <= 0:
		return fmt.Errorf("max samples must be positive, got %d", c.MaxSamples)
	case c.MaxFeatures <= 0 || c.MaxFeatures > 1:
		return fmt.Errorf("max features must be in (0, 1], got %v", c.MaxFeatures)
	case c.Contamination <= 0 || c.Contamination > 0.5:
		return fmt.Errorf("contamination must be in (0, 0.5], got %v", c.Contamination)
	}
	return nil
}

type node struct {
	feature   int
	threshold float64
	left      int32
	right     int32
	size      int
	leaf      bool
}

type tree struct {
	nodes []node
}

// Forest обученный ансамбль. После Fit только читается
type Forest struct {
	trees      []tree
	sampleSize int
	dims       int
	offset     float64
}

// EstimateFitBytes оценка памяти под ансамбль
func EstimateFitBytes(cfg Config, n, dims int) int64 {
	psi := min(cfg.MaxSamples, n)
	perTree := int64(2*psi-1)*nodeBytes + int64(psi+dims)*8
	workers := int64(max(cfg.Workers, 1))
	return int64(cfg.Estimators)*perTree + workers*int64(n)*8 + int64(n*dims)*8
}

// FitForest строит ансамбль параллельно. Каждое дерево пишет только в свой слот,
// обучающая матрица только читается
func FitForest(ctx context.Context, x [][]float64, cfg Config) (*Forest, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	n := len(x)
	if n == 0 {
		return nil, errors.New("fit forest: empty training matrix")
	}
	dims := len(x[0])
	if dims == 0 {
		return nil, errors.New("fit forest: zero features")
	}
	for i, row := range x {
		if len(row) != dims {
			return nil, fmt.Errorf("fit forest: row %d has %d features, want %d", i, len(row), dims)
		}
	}

	if cfg.MemoryLimit > 0 {
		if need := EstimateFitBytes(cfg, n, dims); need > cfg.MemoryLimit {
			return nil, &models.ResourceExhaustionError{Required: need, Limit: cfg.MemoryLimit}
		}
	}

	psi := min(cfg.MaxSamples, n)
	nFeatures := max(1, int(cfg.MaxFeatures*float64(dims)))
	depthLimit := int(math.Ceil(math.Log2(float64(max(psi, 2)))))

	// зерна раздаются до запуска воркеров, результат не зависит от расписания
	master := rand.New(rand.NewSource(cfg.Seed))
	seeds := make([]int64, cfg.Estimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]tree, cfg.Estimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i := range trees {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := rand.New(rand.NewSource(seeds[i]))
			b := builder{x: x, rng: r, depthLimit: depthLimit}
			b.features = r.Perm(dims)[:nFeatures]
			sample := r.Perm(n)[:psi]
			b.grow(sample, 0)
			trees[i] = tree{nodes: b.nodes}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	f := &Forest{trees: trees, sampleSize: psi, dims: dims}
	scores := make([]float64, n)
	for i, row := range x {
		scores[i] = f.scoreSamples(row)
	}
	f.offset = percentile(scores, 100*cfg.Contamination)
	return f, nil
}

type builder struct {
	x          [][]float64
	rng        *rand.Rand
	features   []int
	depthLimit int
	nodes      []node
}

func (b *builder) grow(idx []int, depth int) int32 {
	id := int32(len(b.nodes))
	b.nodes = append(b.nodes, node{size: len(idx), leaf: true})
	if depth >= b.depthLimit || len(idx) <= 1 {
		return id
	}

	// случайный признак с ненулевым разбросом
	order := b.rng.Perm(len(b.features))
	feature, lo, hi := -1, 0.0, 0.0
	for _, k := range order {
		f := b.features[k]
		mn, mx := b.x[idx[0]][f], b.x[idx[0]][f]
		for _, s := range idx[1:] {
			v := b.x[s][f]
			mn = math.Min(mn, v)
			mx = math.Max(mx, v)
		}
		if mx > mn {
			feature, lo, hi = f, mn, mx
			break
		}
	}
	if feature < 0 {
		return id
	}

	threshold := lo + b.rng.Float64()*(hi-lo)
	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, s := range idx {
		if b.x[s][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = node{feature: feature, threshold: threshold, left: l, right: r, size: len(idx)}
	return id
}

func (t tree) pathLength(x []float64) float64 {
	i, depth := int32(0), 0
	for {
		nd := t.nodes[i]
		if nd.leaf {
			return float64(depth) + averagePathLength(nd.size)
		}
		if x[nd.feature] <= nd.threshold {
			i = nd.left
		} else {
			i = nd.right
		}
		depth++
	}
}

// averagePathLength средняя длина пути неуспешного поиска в BST из n элементов
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

// scoreSamples исходный скор: -2^(-E[h(x)]/c(psi)), ближе к -1 - аномальнее
func (f *Forest) scoreSamples(x []float64) float64 {
	var total float64
	for _, t := range f.trees {
		total += t.pathLength(x)
	}
	mean := total / float64(len(f.trees))
	return -math.Pow(2, -mean/averagePathLength(f.sampleSize))
}

// Decision смещенный скор, отрицательный для аномалий
func (f *Forest) Decision(x []float64) (float64, error) {
	if len(x) != f.dims {
		return 0, fmt.Errorf("decision: got %d features, want %d", len(x), f.dims)
	}
	return f.scoreSamples(x) - f.offset, nil
}

// Offset порог, вычтенный из исходного скора
func (f *Forest) Offset() float64 { return f.offset }

// Size количество деревьев
func (f *Forest) Size() int { return len(f.trees) }

// percentile с линейной интерполяцией между соседними порядковыми статистиками
func percentile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
