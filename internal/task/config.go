package task

// Config is the per-run configuration of a task. The concrete type is
// determined by the task type; the set of variants is closed.
type Config interface {
	Type() Type
	isConfig()
}

// MergeConfig configures a pdf-merge run.
type MergeConfig struct {
	OutputFileName      string `json:"output_file_name"`
	OutputPath          string `json:"output_path,omitempty"` // display only
	CreateSeparateFiles bool   `json:"create_separate_files"`
	SeparatorIndices    []int  `json:"separator_indices"`
}

func (MergeConfig) Type() Type { return TypePdfMerge }
func (MergeConfig) isConfig()  {}

// SplitConfig configures a pdf-split run.
type SplitConfig struct {
	BaseFileName string `json:"base_file_name"`
	OutputDir    string `json:"output_dir,omitempty"` // display only
	SplitPoints  []int  `json:"split_points"`
}

func (SplitConfig) Type() Type { return TypePdfSplit }
func (SplitConfig) isConfig()  {}

type ImageQuality string

const (
	QualityMedium ImageQuality = "medium"
	QualityHigh   ImageQuality = "high"
	QualityUltra  ImageQuality = "ultra"
)

type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPG  ImageFormat = "jpg"
	FormatWEBP ImageFormat = "webp"
	FormatAVIF ImageFormat = "avif"
)

// PdfToImageConfig configures a pdf-to-image run. Pages are 1-indexed and inclusive.
type PdfToImageConfig struct {
	StartPage    int          `json:"start_page"`
	EndPage      int          `json:"end_page"`
	Quality      ImageQuality `json:"quality"`
	Format       ImageFormat  `json:"format"`
	OutputPath   string       `json:"output_path,omitempty"`
	CreateFolder bool         `json:"create_folder"`
}

func (PdfToImageConfig) Type() Type { return TypePdfToImage }
func (PdfToImageConfig) isConfig()  {}

// ImageConfig covers the image-resize and image-compress kinds. Kind selects which one.
type ImageConfig struct {
	Kind                Type        `json:"kind"`
	Quality             int         `json:"quality,omitempty"` // 10-80
	Width               int         `json:"width,omitempty"`
	Height              int         `json:"height,omitempty"`
	MaintainAspectRatio bool        `json:"maintain_aspect_ratio"`
	Format              ImageFormat `json:"format,omitempty"`
	OutputPath          string      `json:"output_path,omitempty"`
}

func (c ImageConfig) Type() Type {
	if c.Kind == TypeImageCompress {
		return TypeImageCompress
	}
	return TypeImageResize
}
func (ImageConfig) isConfig() {}
