package scoring

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/spf13/viper"
)

//go:embed scoring_config.yaml
var packagedConfig []byte

// defaultNormalizer 配置缺失时的归一化常数
const defaultNormalizer = 3.0

// Weights 评分权重配置
// Weights为各信号在总分中的权重，Normalizers为命中次数的归一化常数
type Weights struct {
	Weights     map[string]float64 `mapstructure:"weights"`
	Normalizers map[string]float64 `mapstructure:"normalizers"`
}

// DefaultWeights 返回随程序打包的权重配置
func DefaultWeights() Weights {
	w, err := readWeights(newWeightsViper())
	if err != nil {
		panic(fmt.Sprintf("scoring: packaged weights are invalid: %v", err))
	}
	return w
}

// LoadWeights 加载权重配置
// path为空时使用打包配置，否则用外部文件覆盖打包配置中的对应项
func LoadWeights(path string) (Weights, error) {
	v := newWeightsViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Weights{}, fmt.Errorf("failed to read scoring config %s: %w", path, err)
		}
	}
	return readWeights(v)
}

func newWeightsViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	// 打包配置在编译期确定，读取失败只可能是文件本身损坏
	if err := v.ReadConfig(bytes.NewReader(packagedConfig)); err != nil {
		panic(fmt.Sprintf("scoring: cannot parse packaged config: %v", err))
	}
	return v
}

func readWeights(v *viper.Viper) (Weights, error) {
	var w Weights
	if err := v.Unmarshal(&w); err != nil {
		return Weights{}, fmt.Errorf("failed to parse scoring config: %w", err)
	}
	for name, n := range w.Normalizers {
		if n <= 0 {
			return Weights{}, fmt.Errorf("normalizer for %s must be positive, got %v", name, n)
		}
	}
	for name, weight := range w.Weights {
		if weight < 0 {
			return Weights{}, fmt.Errorf("weight for %s must not be negative, got %v", name, weight)
		}
	}
	return w, nil
}

// Weight 返回信号权重，未配置时为0
func (w Weights) Weight(signal Signal) float64 {
	return w.Weights[string(signal)]
}

// Normalizer 返回信号的归一化常数
func (w Weights) Normalizer(signal Signal) float64 {
	if n, ok := w.Normalizers[string(signal)]; ok && n > 0 {
		return n
	}
	return defaultNormalizer
}
