package reportmerge

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"bitbucket.org/ostrovlabs/loyalty_backend/config"
	"bitbucket.org/ostrovlabs/loyalty_backend/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const maxUploadBytes = 32 << 20

func RegisterRoutes(router gin.IRouter) {
	reports := router.Group("/reports")
	reports.POST("/upload", UploadReportHandler)
	reports.GET("", ListReportsHandler)
	reports.GET("/:id", ReportDetailHandler)
}

// UploadReportHandler receives one fiscal export file and merges it
// synchronously. Re-uploads of an already processed file come back with
// skipped=true and the original batch.
func UploadReportHandler(c *gin.Context) {
	logger := config.GetLogger()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		config.LogError(logger, "reportmerge", "UploadReportHandler", "open upload", fileHeader.Filename, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		config.LogError(logger, "reportmerge", "UploadReportHandler", "read upload", fileHeader.Filename, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}

	batch, stats, err := ProcessReportFile(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrUnknownReportType) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		config.LogError(logger, "reportmerge", "UploadReportHandler", "process file", fileHeader.Filename, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report processing failed"})
		return
	}

	skipped := batch.ProcessingStatus == models.ReportStatusCompleted &&
		stats.Created == 0 && stats.Updated == 0 && stats.Skipped == batch.RowsCount

	c.JSON(http.StatusOK, gin.H{
		"report":  mapBatchToSummary(*batch),
		"stats":   stats,
		"skipped": skipped,
	})
}

func ListReportsHandler(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	db := config.GetDB().WithContext(c.Request.Context())
	var batches []models.ReportBatch
	if err := db.Order("id DESC").Limit(limit).Find(&batches).Error; err != nil {
		config.LogError(config.GetLogger(), "reportmerge", "ListReportsHandler", "list batches", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list reports"})
		return
	}

	summaries := make([]ReportSummary, 0, len(batches))
	for _, batch := range batches {
		summaries = append(summaries, mapBatchToSummary(batch))
	}
	c.JSON(http.StatusOK, gin.H{"reports": summaries})
}

func ReportDetailHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	var batch models.ReportBatch
	if err := db.First(&batch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		config.LogError(config.GetLogger(), "reportmerge", "ReportDetailHandler", "load batch", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load report"})
		return
	}

	response := gin.H{"report": mapBatchToSummary(batch)}
	if len(batch.MetadataJSON) > 0 {
		response["stats"] = json.RawMessage(batch.MetadataJSON)
	}
	c.JSON(http.StatusOK, response)
}
