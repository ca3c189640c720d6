package postersync

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/ostrovlabs/loyalty_backend/config"
	"bitbucket.org/ostrovlabs/loyalty_backend/models"
	"bitbucket.org/ostrovlabs/loyalty_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func RegisterRoutes(router gin.IRouter) {
	router.GET("/poster/status", StatusHandler())
	router.POST("/poster/connect", ConnectHandler())
	router.POST("/poster/disconnect", DisconnectHandler())
	router.PUT("/poster/settings", UpdateSettingsHandler())
	router.POST("/poster/sync", TriggerSyncHandler())
	router.GET("/poster/sync/history", SyncHistoryHandler())
	router.GET("/poster/sync/:id", SyncRunDetailHandler())
	router.POST("/poster/sync/:id/retry", RetrySyncRunHandler())
	router.POST("/poster/bonus/adjust", AdjustBonusHandler())
	router.GET("/poster/clients/:id/bonus", ClientBonusHandler())
	router.GET("/poster/transactions/:id", TransactionDetailHandler())
	router.POST("/poster/pubsub/push", PubSubPushHandler())
}

func StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context())

		conn, err := getConnection(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn == nil {
			c.JSON(http.StatusOK, StatusResponse{
				Connection: ConnectionResponse{Status: models.ConnectionStatusDisconnected},
				Modules:    DefaultModules(),
			})
			return
		}

		c.JSON(http.StatusOK, StatusResponse{
			Connection: ConnectionResponse{
				Status:      conn.Status,
				AccountName: conn.AccountName,
			},
			LastSyncAt:        formatTime(conn.LastSyncAt),
			LastSuccessSyncAt: formatTime(conn.LastSuccessSyncAt),
			Modules:           DecodeModules(conn.SettingsJSON),
		})
	}
}

func ConnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ConnectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		req.APIToken = strings.TrimSpace(req.APIToken)
		if err := utils.ValidateStruct(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		conn, err := getConnection(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		now := time.Now()
		accountName := strings.TrimSpace(req.AccountName)

		if conn == nil {
			conn = &models.PosConnection{
				AccountName:  accountName,
				Status:       models.ConnectionStatusConnected,
				AuthToken:    req.APIToken,
				SettingsJSON: EncodeModules(DefaultModules()),
				UpdatedAt:    now,
			}
			if err := db.Create(conn).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		} else {
			update := map[string]interface{}{
				"status":       models.ConnectionStatusConnected,
				"auth_token":   req.APIToken,
				"account_name": accountName,
				"updated_at":   now,
			}
			if len(conn.SettingsJSON) == 0 {
				update["settings_json"] = EncodeModules(DefaultModules())
			}
			if err := db.Model(conn).Updates(update).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func DisconnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context())
		conn, err := getConnection(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn == nil {
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}

		if err := db.Model(conn).Updates(map[string]interface{}{
			"status":     models.ConnectionStatusDisconnected,
			"auth_token": "",
			"updated_at": time.Now(),
		}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func UpdateSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateSettingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		conn, err := getConnection(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		modules := EncodeModules(req.Modules)
		if conn == nil {
			conn = &models.PosConnection{
				Status:       models.ConnectionStatusDisconnected,
				SettingsJSON: modules,
			}
			if err := db.Create(conn).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		} else {
			if err := db.Model(conn).Updates(map[string]interface{}{
				"settings_json": modules,
				"updated_at":    time.Now(),
			}).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func TriggerSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TriggerSyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		conn, err := getConnection(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn == nil || conn.Status != models.ConnectionStatusConnected {
			c.JSON(http.StatusConflict, gin.H{"error": "poster is not connected"})
			return
		}

		modules := req.Modules
		if isEmptyModules(modules) {
			modules = DecodeModules(conn.SettingsJSON)
		}

		run := models.SyncRun{
			ConnectionId: conn.ID,
			Status:       models.SyncRunStatusQueued,
			TriggeredBy:  models.SyncTriggeredManual,
			ModulesJSON:  EncodeModules(modules),
		}
		if err := db.Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if err := PublishSyncRun(c.Request.Context(), run.ID, conn.ID); err != nil {
			failUndispatchedRun(c, db, run.ID, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

// failUndispatchedRun closes out a run whose queue publish failed. Leaving
// it queued would show a run that never starts; the caller gets the run id
// back so the failure is visible in history.
func failUndispatchedRun(c *gin.Context, db *gorm.DB, runId uint, pubErr error) {
	config.LogError(config.GetLogger(), "postersync", "failUndispatchedRun", "PublishSyncRun", runId, pubErr)
	if err := db.Model(&models.SyncRun{}).Where("id = ?", runId).Updates(map[string]interface{}{
		"status":      models.SyncRunStatusFailed,
		"error_count": 1,
		"finished_at": time.Now(),
	}).Error; err != nil {
		config.LogError(config.GetLogger(), "postersync", "failUndispatchedRun", "update run", runId, err)
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "failed to queue sync run", "id": runId})
}

func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var runs []models.SyncRun
		if err := db.Order("id desc").Limit(limit).Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, SyncHistoryResponse{Items: items})
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var run models.SyncRun
		if err := db.Take(&run, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var errs []models.SyncError
		if err := db.Where("sync_run_id = ?", run.ID).Order("id desc").Find(&errs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, SyncRunDetailResponse{
			SyncRunResponse: mapRunToResponse(run),
			Stats:           run.StatsJSON,
			Errors:          mapErrors(errs),
		})
	}
}

func RetrySyncRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var run models.SyncRun
		if err := db.Take(&run, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		newRun := models.SyncRun{
			ConnectionId: run.ConnectionId,
			Status:       models.SyncRunStatusQueued,
			TriggeredBy:  models.SyncTriggeredRetry,
			ModulesJSON:  run.ModulesJSON,
			ParentRunId:  &run.ID,
		}
		if err := db.Create(&newRun).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if err := PublishSyncRun(c.Request.Context(), newRun.ID, run.ConnectionId); err != nil {
			failUndispatchedRun(c, db, newRun.ID, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"id": newRun.ID})
	}
}

// AdjustBonusHandler posts an operator correction to a client balance. The
// correction goes through the ledger like every other balance movement.
func AdjustBonusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AdjustBonusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.ClientId == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "clientId is required"})
			return
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
		if err != nil || amount.IsZero() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a non-zero number"})
			return
		}

		entry, err := models.AdjustClientBonus(c.Request.Context(), req.ClientId, amount, strings.TrimSpace(req.Description))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

// ClientBonusHandler shows one client's cached balance next to their latest
// ledger entries, the operator's view for checking the two agree.
func ClientBonusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientId, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || clientId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
			return
		}

		client, err := models.GetClientByExternalId(c.Request.Context(), clientId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var entries []models.BonusLedgerEntry
		if err := db.Where("client_id = ?", clientId).
			Order("id desc").Limit(50).Find(&entries).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"client": client,
			"ledger": entries,
		})
	}
}

func TransactionDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		transactionId, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || transactionId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
			return
		}

		transaction, err := models.GetTransactionByExternalId(c.Request.Context(), transactionId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, transaction)
	}
}

func getConnection(db *gorm.DB) (*models.PosConnection, error) {
	var conn models.PosConnection
	err := db.Order("id").Take(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapRunToResponse(run models.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:            run.ID,
		Status:        run.Status,
		StartedAt:     formatTime(run.StartedAt),
		FinishedAt:    formatTime(run.FinishedAt),
		DurationMs:    run.DurationMs,
		RecordsSynced: run.RecordsSynced,
		ErrorCount:    run.ErrorCount,
		TriggeredBy:   run.TriggeredBy,
	}
}

func mapErrors(errorsList []models.SyncError) []SyncErrorResponse {
	out := make([]SyncErrorResponse, 0, len(errorsList))
	for _, errItem := range errorsList {
		out = append(out, SyncErrorResponse{
			ID:         errItem.ID,
			EntityType: errItem.EntityType,
			ExternalId: errItem.ExternalId,
			Message:    errItem.Message,
			Retryable:  errItem.Retryable,
		})
	}
	return out
}

func isEmptyModules(mod SyncModules) bool {
	return !mod.Spots && !mod.Products && !mod.Clients && !mod.Transactions
}
