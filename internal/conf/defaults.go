// conf/defaults.go default values for settings
package conf

import (
	"runtime"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/spf13/viper"
)

// TomatoLabels is the output order of the bundled tomato classifier.
var TomatoLabels = []string{
	"tomato_bacterial_spot",
	"tomato_early_blight",
	"tomato_late_blight",
	"tomato_leaf_mold",
	"tomato_septoria_leaf_spot",
	"tomato_spider_mites",
	"tomato_target_spot",
	"tomato_yellow_leaf_curl_virus",
	"tomato_mosaic_virus",
	"tomato_healthy",
}

// setDefaultConfig registers default values on v.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.bodylimit", "16M")
	v.SetDefault("server.shutdowntimeout", 10*time.Second)
	v.SetDefault("server.corsorigins", []string{"*"})

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.path", "plantdoc.db")
	v.SetDefault("database.maxopenconns", 10)
	v.SetDefault("database.maxidleconns", 5)
	v.SetDefault("database.slowthreshold", 200*time.Millisecond)
	v.SetDefault("database.seedfile", "")

	v.SetDefault("models.dir", "models")
	v.SetDefault("models.threads", 0)
	v.SetDefault("models.xnnpack", false)
	v.SetDefault("models.onnxlib", "")
	v.SetDefault("models.plants", []map[string]any{
		{
			"name":          "tomato",
			"path":          "tomato/v1/model.tflite",
			"labels":        TomatoLabels,
			"normalization": "unit",
			"layout":        "nhwc",
			"output":        "probabilities",
		},
	})

	v.SetDefault("image.width", 256)
	v.SetDefault("image.height", 256)

	v.SetDefault("prediction.topk", 5)
	v.SetDefault("prediction.cachettl", 0)

	v.SetDefault("uploads.enabled", false)
	v.SetDefault("uploads.path", "uploads")
	v.SetDefault("uploads.minfreemb", 512)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")
	v.SetDefault("telemetry.environment", "production")
	v.SetDefault("telemetry.samplerate", 1.0)
}

// DefaultThreadCount returns the interpreter thread count used when
// models.threads is 0: the physical core count, capped by the CPUs
// available to this process.
func DefaultThreadCount() int {
	available := runtime.NumCPU()
	cores := cpuid.CPU.PhysicalCores
	if cores <= 0 || cores > available {
		return available
	}
	return cores
}
