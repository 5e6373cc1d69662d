package dto

// ReportQuery carries the direct/extended switch for category reports.
type ReportQuery struct {
	Extended bool `form:"extended"`
}

// ExportQuery selects the rendering of a category report download.
type ExportQuery struct {
	Format   string `form:"format" binding:"required,oneof=csv pdf"`
	View     string `form:"view" binding:"omitempty,oneof=courses students"`
	Extended bool   `form:"extended"`
}
