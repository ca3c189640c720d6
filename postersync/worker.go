package postersync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/ostrovlabs/loyalty_backend/config"
	"bitbucket.org/ostrovlabs/loyalty_backend/models"
	"bitbucket.org/ostrovlabs/loyalty_backend/utils"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const syncLockTTL = 30 * time.Minute

type posterSpotRecord struct {
	SpotID  json.Number `json:"spot_id"`
	Name    string      `json:"name"`
	Address string      `json:"address"`
}

type posterProductRecord struct {
	ProductID    json.Number `json:"product_id"`
	ProductName  string      `json:"product_name"`
	CategoryID   json.Number `json:"menu_category_id"`
	CategoryName string      `json:"category_name"`
	Cost         json.Number `json:"cost"`
	Hidden       json.Number `json:"hidden"`
	Deleted      json.Number `json:"delete"`
}

type posterClientRecord struct {
	ClientID       json.Number `json:"client_id"`
	Firstname      string      `json:"firstname"`
	Lastname       string      `json:"lastname"`
	Patronymic     string      `json:"patronymic"`
	Phone          string      `json:"phone"`
	PhoneNumber    string      `json:"phone_number"`
	Email          string      `json:"email"`
	Birthday       string      `json:"birthday"`
	CardNumber     string      `json:"card_number"`
	City           string      `json:"city"`
	Address        string      `json:"address"`
	Bonus          json.Number `json:"bonus"`
	DiscountPer    json.Number `json:"discount_per"`
	GroupID        json.Number `json:"client_groups_id"`
	GroupName      string      `json:"client_groups_name"`
	GroupDiscount  json.Number `json:"client_groups_discounts"`
	TotalPayedSum  json.Number `json:"total_payed_sum"`
	Deleted        json.Number `json:"delete"`
}

type posterTransactionRecord struct {
	TransactionID json.Number                `json:"transaction_id"`
	ClientID      json.Number                `json:"client_id"`
	SpotID        json.Number                `json:"spot_id"`
	DateStart     string                     `json:"date_start"`
	DateClose     string                     `json:"date_close"`
	Sum           json.Number                `json:"sum"`
	PayedSum      json.Number                `json:"payed_sum"`
	PayedCash     json.Number                `json:"payed_cash"`
	PayedCard     json.Number                `json:"payed_card"`
	PayedCert     json.Number                `json:"payed_cert"`
	PayedBonus    json.Number                `json:"payed_bonus"`
	PayedThird    json.Number                `json:"payed_third_party"`
	RoundSum      json.Number                `json:"round_sum"`
	TipSum        json.Number                `json:"tip_sum"`
	PayType       json.Number                `json:"pay_type"`
	Bonus         json.Number                `json:"bonus"`
	PrintFiscal   json.Number                `json:"print_fiscal"`
	Status        json.Number                `json:"status"`
	Products      []posterTransactionProduct `json:"products"`
}

type posterTransactionProduct struct {
	ProductID   json.Number `json:"product_id"`
	ProductName string      `json:"product_name"`
	Num         json.Number `json:"num"`
	Price       json.Number `json:"price"`
	ProductSum  json.Number `json:"product_sum"`
	Discount    json.Number `json:"discount"`
	Bonus       json.Number `json:"bonus"`
	BonusSum    json.Number `json:"bonus_sum"`
	TaxID       json.Number `json:"tax_id"`
	TaxValue    json.Number `json:"tax_value"`
	TaxSum      json.Number `json:"tax_sum"`
}

func processSyncRun(ctx context.Context, payload SyncPubSubPayload) error {
	logger := config.GetLogger()

	if payload.RunId == 0 {
		return errors.New("invalid payload")
	}

	db := config.GetDB().WithContext(ctx)

	run, err := models.GetSyncRun(ctx, payload.RunId)
	if err != nil {
		return err
	}
	if run.Status == models.SyncRunStatusSuccess || run.Status == models.SyncRunStatusFailed || run.Status == models.SyncRunStatusPartial {
		return nil
	}

	conn, err := models.GetPosConnection(ctx, run.ConnectionId)
	if err != nil {
		return err
	}
	if conn.Status != models.ConnectionStatusConnected {
		return errors.New("poster account not connected")
	}

	// One run per connection at a time. A push redelivery while the run is
	// in flight bounces off the lock.
	locker := config.GetRedisLock()
	if locker != nil {
		lock, err := locker.Obtain(ctx, fmt.Sprintf("posterSyncRun:%d", conn.ID), syncLockTTL, nil)
		if err != nil {
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil
			}
			return err
		}
		defer lock.Release(context.Background())
	}

	modules := DecodeModules(run.ModulesJSON)
	cursorState := DecodeCursorState(conn.CursorStateJSON)

	now := time.Now()
	startedAt := run.StartedAt
	if startedAt == nil {
		startedAt = &now
	}
	if err := db.Model(run).Updates(map[string]interface{}{
		"status":     models.SyncRunStatusRunning,
		"started_at": startedAt,
	}).Error; err != nil {
		return err
	}

	client, err := newPosterClient(conn.AuthToken)
	if err != nil {
		return err
	}

	stats := map[string]ReconcileStats{}
	errorCount := 0

	// Referential order: transactions link to all three of the others, so
	// they go last and the earlier modules act as barriers.
	if modules.Spots {
		moduleStats, err := syncSpots(ctx, db, run.ID, client)
		stats["spots"] = moduleStats
		errorCount += moduleStats.Errors
		if err != nil {
			errorCount++
			_ = createSyncError(ctx, db, run.ID, "spots", "", "sync_failed", err.Error(), nil, true)
		}
	}

	if modules.Products {
		moduleStats, err := syncProducts(ctx, db, run.ID, client)
		stats["products"] = moduleStats
		errorCount += moduleStats.Errors
		if err != nil {
			errorCount++
			_ = createSyncError(ctx, db, run.ID, "products", "", "sync_failed", err.Error(), nil, true)
		}
	}

	if modules.Clients {
		moduleStats, newOffset, err := syncClients(ctx, db, run.ID, client, cursorState.ClientOffset)
		stats["clients"] = moduleStats
		errorCount += moduleStats.Errors
		if err != nil {
			errorCount++
			_ = createSyncError(ctx, db, run.ID, "clients", "", "sync_failed", err.Error(), nil, true)
		} else {
			cursorState.ClientOffset = newOffset
		}
	}

	if modules.Transactions {
		moduleStats, windowEnd, err := syncTransactions(ctx, db, run.ID, client, conn, cursorState.TransactionsFrom)
		stats["transactions"] = moduleStats
		errorCount += moduleStats.Errors
		if err != nil {
			errorCount++
			_ = createSyncError(ctx, db, run.ID, "transactions", "", "sync_failed", err.Error(), nil, true)
		} else {
			cursorState.TransactionsFrom = windowEnd
		}
	}

	finishedAt := time.Now()
	durationMs := finishedAt.Sub(*startedAt).Milliseconds()

	totalSynced := 0
	for _, moduleStats := range stats {
		totalSynced += moduleStats.total()
	}
	status := models.SyncRunStatusSuccess
	if errorCount > 0 && totalSynced == 0 {
		status = models.SyncRunStatusFailed
	} else if errorCount > 0 {
		status = models.SyncRunStatusPartial
	}
	if ctx.Err() != nil && status == models.SyncRunStatusSuccess {
		status = models.SyncRunStatusPartial
	}

	statsJSON, _ := json.Marshal(stats)
	cursorJSON := EncodeCursorState(cursorState)
	if err := db.Model(run).Updates(map[string]interface{}{
		"status":            status,
		"finished_at":       finishedAt,
		"duration_ms":       durationMs,
		"records_synced":    totalSynced,
		"error_count":       errorCount,
		"stats_json":        statsJSON,
		"cursor_state_json": cursorJSON,
	}).Error; err != nil {
		return err
	}

	connUpdates := map[string]interface{}{
		"last_sync_at":      finishedAt,
		"cursor_state_json": cursorJSON,
	}
	if status == models.SyncRunStatusSuccess {
		connUpdates["last_success_sync_at"] = finishedAt
	}
	if err := db.Model(&models.PosConnection{}).
		Where("id = ?", conn.ID).
		Updates(connUpdates).Error; err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"run_id":         run.ID,
		"status":         status,
		"records_synced": totalSynced,
		"error_count":    errorCount,
		"duration_ms":    durationMs,
	}).Info("poster sync run finished")

	return nil
}

func syncSpots(ctx context.Context, db *gorm.DB, runID uint, client *posterClient) (ReconcileStats, error) {
	resp, err := client.getList(ctx, "spots.getSpots", nil)
	if err != nil {
		return ReconcileStats{}, err
	}

	now := time.Now()
	batch := make([]*models.Spot, 0, len(resp.Items))
	var stats ReconcileStats
	for _, raw := range resp.Items {
		var rec posterSpotRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			stats.Errors++
			_ = createSyncError(ctx, db, runID, "spot", "", "invalid_payload", err.Error(), raw, true)
			continue
		}
		spotId, _ := rec.SpotID.Int64()
		batch = append(batch, &models.Spot{
			SpotID:       spotId,
			Name:         strings.TrimSpace(rec.Name),
			Address:      strings.TrimSpace(rec.Address),
			LastSyncedAt: &now,
		})
	}

	reconStats, err := reconcileEntities(ctx, db, "spot_id", batch, func(tx *gorm.DB, spot *models.Spot) error {
		return tx.Model(&models.Spot{}).
			Where("spot_id = ?", spot.SpotID).
			Updates(map[string]interface{}{
				"name":           spot.Name,
				"address":        spot.Address,
				"last_synced_at": spot.LastSyncedAt,
			}).Error
	})
	stats.add(reconStats)
	return stats, err
}

func syncProducts(ctx context.Context, db *gorm.DB, runID uint, client *posterClient) (ReconcileStats, error) {
	resp, err := client.getList(ctx, "menu.getProducts", nil)
	if err != nil {
		return ReconcileStats{}, err
	}

	now := time.Now()
	batch := make([]*models.Product, 0, len(resp.Items))
	var stats ReconcileStats
	for _, raw := range resp.Items {
		var rec posterProductRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			stats.Errors++
			_ = createSyncError(ctx, db, runID, "product", "", "invalid_payload", err.Error(), raw, true)
			continue
		}
		productId, _ := rec.ProductID.Int64()
		categoryId, _ := rec.CategoryID.Int64()
		hidden, _ := rec.Hidden.Int64()
		deleted, _ := rec.Deleted.Int64()
		batch = append(batch, &models.Product{
			PosProductID: productId,
			Name:         strings.TrimSpace(rec.ProductName),
			CategoryID:   categoryId,
			CategoryName: strings.TrimSpace(rec.CategoryName),
			Cost:         utils.DecimalFromNumber(rec.Cost),
			Hidden:       hidden == 1,
			Deleted:      deleted == 1,
			LastSyncedAt: &now,
		})
	}

	reconStats, err := reconcileEntities(ctx, db, "pos_product_id", batch, func(tx *gorm.DB, product *models.Product) error {
		return tx.Model(&models.Product{}).
			Where("pos_product_id = ?", product.PosProductID).
			Updates(map[string]interface{}{
				"name":           product.Name,
				"category_id":    product.CategoryID,
				"category_name":  product.CategoryName,
				"cost":           product.Cost,
				"hidden":         product.Hidden,
				"deleted":        product.Deleted,
				"last_synced_at": product.LastSyncedAt,
			}).Error
	})
	stats.add(reconStats)
	return stats, err
}

func syncClients(ctx context.Context, db *gorm.DB, runID uint, client *posterClient, offset int64) (ReconcileStats, int64, error) {
	batchSize := intFromEnvDefault("POSTER_CLIENTS_BATCH_SIZE", 500)
	var stats ReconcileStats

	for {
		if err := ctx.Err(); err != nil {
			return stats, offset, err
		}

		params := url.Values{}
		params.Set("num", strconv.Itoa(batchSize))
		params.Set("offset", strconv.FormatInt(offset, 10))
		params.Set("order_by", "id")
		params.Set("sort", "asc")

		resp, err := client.getList(ctx, "clients.getClients", params)
		if err != nil {
			return stats, offset, err
		}
		if len(resp.Items) == 0 {
			return stats, offset, nil
		}

		now := time.Now()
		batch := make([]*models.Client, 0, len(resp.Items))
		for _, raw := range resp.Items {
			rec, mapped, err := mapClientRecord(raw, now)
			if err != nil {
				stats.Errors++
				_ = createSyncError(ctx, db, runID, "client", rec, "invalid_payload", err.Error(), raw, true)
				continue
			}
			batch = append(batch, mapped)
		}

		reconStats, err := reconcileEntities(ctx, db, "client_id", batch, applyClientUpdate)
		stats.add(reconStats)
		if err != nil {
			return stats, offset, err
		}

		offset += int64(len(resp.Items))
		if len(resp.Items) < batchSize {
			return stats, offset, nil
		}
	}
}

func mapClientRecord(raw json.RawMessage, now time.Time) (string, *models.Client, error) {
	var rec posterClientRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", nil, err
	}
	clientId, err := rec.ClientID.Int64()
	if err != nil || clientId == 0 {
		return rec.ClientID.String(), nil, errors.New("client id missing")
	}

	groupId, _ := rec.GroupID.Int64()
	deleted, _ := rec.Deleted.Int64()

	phone := strings.TrimSpace(rec.Phone)
	normalized := strings.TrimSpace(rec.PhoneNumber)
	if normalized == "" {
		normalized = utils.NormalizePhone(phone)
	}

	return rec.ClientID.String(), &models.Client{
		ClientID:      clientId,
		Firstname:     strings.TrimSpace(rec.Firstname),
		Lastname:      strings.TrimSpace(rec.Lastname),
		Patronymic:    strings.TrimSpace(rec.Patronymic),
		Phone:         phone,
		PhoneNumber:   normalized,
		Email:         strings.TrimSpace(rec.Email),
		Birthday:      strings.TrimSpace(rec.Birthday),
		CardNumber:    strings.TrimSpace(rec.CardNumber),
		City:          strings.TrimSpace(rec.City),
		Address:       strings.TrimSpace(rec.Address),
		Bonus:         utils.DecimalFromNumber(rec.Bonus),
		DiscountPer:   utils.DecimalFromNumber(rec.DiscountPer),
		GroupID:       groupId,
		GroupName:     strings.TrimSpace(rec.GroupName),
		GroupDiscount: utils.DecimalFromNumber(rec.GroupDiscount),
		TotalPayedSum: utils.DecimalFromNumber(rec.TotalPayedSum),
		Deleted:       deleted == 1,
		RawData:       raw,
		LastSyncedAt:  &now,
	}, nil
}

// applyClientUpdate refreshes the profile columns of an existing client.
// Bonus is deliberately absent: the ledger owns the balance once a client is
// in our database.
func applyClientUpdate(tx *gorm.DB, client *models.Client) error {
	return tx.Model(&models.Client{}).
		Where("client_id = ?", client.ClientID).
		Updates(map[string]interface{}{
			"firstname":       client.Firstname,
			"lastname":        client.Lastname,
			"patronymic":      client.Patronymic,
			"phone":           client.Phone,
			"phone_number":    client.PhoneNumber,
			"email":           client.Email,
			"birthday":        client.Birthday,
			"card_number":     client.CardNumber,
			"city":            client.City,
			"address":         client.Address,
			"discount_per":    client.DiscountPer,
			"group_id":        client.GroupID,
			"group_name":      client.GroupName,
			"group_discount":  client.GroupDiscount,
			"total_payed_sum": client.TotalPayedSum,
			"deleted":         client.Deleted,
			"raw_data":        client.RawData,
			"last_synced_at":  client.LastSyncedAt,
		}).Error
}

func syncTransactions(ctx context.Context, db *gorm.DB, runID uint, client *posterClient, conn *models.PosConnection, windowFrom string) (ReconcileStats, string, error) {
	perPage := intFromEnvDefault("POSTER_TRANSACTIONS_PER_PAGE", 500)
	if perPage > 1000 {
		perPage = 1000
	}

	dateFrom := strings.TrimSpace(windowFrom)
	if dateFrom == "" && conn.LastSuccessSyncAt != nil {
		dateFrom = conn.LastSuccessSyncAt.UTC().Format("2006-01-02")
	}
	if dateFrom == "" {
		dateFrom = time.Now().Add(-30 * 24 * time.Hour).UTC().Format("2006-01-02")
	}
	dateTo := time.Now().UTC().Format("2006-01-02")

	var stats ReconcileStats

	// The producer pulls pages while the consumer lands the previous batch;
	// cancellation is observed between batches, never inside one.
	g, gctx := errgroup.WithContext(ctx)
	pages := make(chan []json.RawMessage, 1)

	g.Go(func() error {
		defer close(pages)
		for page := 1; ; page++ {
			params := url.Values{}
			params.Set("date_from", dateFrom)
			params.Set("date_to", dateTo)
			params.Set("per_page", strconv.Itoa(perPage))
			params.Set("page", strconv.Itoa(page))

			resp, err := client.getList(gctx, "transactions.getTransactions", params)
			if err != nil {
				return err
			}
			if len(resp.Items) == 0 {
				return nil
			}
			select {
			case pages <- resp.Items:
			case <-gctx.Done():
				return gctx.Err()
			}
			if len(resp.Items) < perPage {
				return nil
			}
		}
	})

	g.Go(func() error {
		for items := range pages {
			if err := gctx.Err(); err != nil {
				return err
			}
			batchStats := landTransactionBatch(gctx, db, runID, items)
			stats.add(batchStats)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return stats, windowFrom, err
	}
	return stats, dateTo, nil
}

// landTransactionBatch writes one page of transactions. Each transaction is
// its own db transaction: row upsert, full line-item replace and the ledger
// recomputation commit or roll back together.
func landTransactionBatch(ctx context.Context, db *gorm.DB, runID uint, items []json.RawMessage) ReconcileStats {
	var stats ReconcileStats

	records := make([]*posterTransactionRecord, 0, len(items))
	rawByID := make(map[int64]json.RawMessage, len(items))
	for _, raw := range items {
		stats.Processed++
		var rec posterTransactionRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			stats.Errors++
			_ = createSyncError(ctx, db, runID, "transaction", "", "invalid_payload", err.Error(), raw, true)
			continue
		}
		id, err := rec.TransactionID.Int64()
		if err != nil || id == 0 {
			stats.Errors++
			_ = createSyncError(ctx, db, runID, "transaction", rec.TransactionID.String(), "missing_id", "transaction id missing", raw, false)
			continue
		}
		records = append(records, &rec)
		rawByID[id] = raw
	}
	if len(records) == 0 {
		return stats
	}

	clientIds := collectRefIds(func(collect func(int64)) {
		for _, rec := range records {
			id, _ := rec.ClientID.Int64()
			collect(id)
		}
	})
	spotIds := collectRefIds(func(collect func(int64)) {
		for _, rec := range records {
			id, _ := rec.SpotID.Int64()
			collect(id)
		}
	})
	productIds := collectRefIds(func(collect func(int64)) {
		for _, rec := range records {
			for _, p := range rec.Products {
				id, _ := p.ProductID.Int64()
				collect(id)
			}
		}
	})

	existingClients, err := existingIdSet(ctx, db, &models.Client{}, "client_id", clientIds)
	if err != nil {
		stats.Errors++
		_ = createSyncError(ctx, db, runID, "transaction", "", "lookup_failed", err.Error(), nil, true)
		return stats
	}
	existingSpots, err := existingIdSet(ctx, db, &models.Spot{}, "spot_id", spotIds)
	if err != nil {
		stats.Errors++
		_ = createSyncError(ctx, db, runID, "transaction", "", "lookup_failed", err.Error(), nil, true)
		return stats
	}
	existingProducts, err := existingIdSet(ctx, db, &models.Product{}, "pos_product_id", productIds)
	if err != nil {
		stats.Errors++
		_ = createSyncError(ctx, db, runID, "transaction", "", "lookup_failed", err.Error(), nil, true)
		return stats
	}

	transactionIds := make([]int64, 0, len(records))
	for _, rec := range records {
		id, _ := rec.TransactionID.Int64()
		transactionIds = append(transactionIds, id)
	}
	existingTransactions, err := existingIdSet(ctx, db, &models.Transaction{}, "transaction_id", transactionIds)
	if err != nil {
		stats.Errors++
		_ = createSyncError(ctx, db, runID, "transaction", "", "lookup_failed", err.Error(), nil, true)
		return stats
	}

	now := time.Now()
	for _, rec := range records {
		transactionId, _ := rec.TransactionID.Int64()
		transaction, lineItems := mapTransactionRecord(rec, rawByID[transactionId], now, existingClients, existingSpots, existingProducts)

		_, exists := existingTransactions[transactionId]
		err := db.Transaction(func(tx *gorm.DB) error {
			if exists {
				if err := tx.Model(&models.Transaction{}).
					Where("transaction_id = ?", transactionId).
					Updates(transactionUpdateMap(transaction)).Error; err != nil {
					return err
				}
			} else if err := tx.Create(transaction).Error; err != nil {
				// A concurrent run can land the row between the existence
				// lookup and the insert.
				if !utils.IsDuplicateKeyError(err) {
					return err
				}
				exists = true
				if err := tx.Model(&models.Transaction{}).
					Where("transaction_id = ?", transactionId).
					Updates(transactionUpdateMap(transaction)).Error; err != nil {
					return err
				}
			}
			if err := models.ReplaceLineItems(tx, transactionId, lineItems); err != nil {
				return err
			}
			return recomputeTransaction(tx, transaction, lineItems)
		})
		if err != nil {
			stats.Errors++
			_ = createSyncError(ctx, db, runID, "transaction", strconv.FormatInt(transactionId, 10), "sync_failed", err.Error(), rawByID[transactionId], true)
			continue
		}
		if exists {
			stats.Updated++
		} else {
			stats.Created++
		}
	}
	return stats
}

func mapTransactionRecord(rec *posterTransactionRecord, raw json.RawMessage, now time.Time, clients, spots, products map[int64]struct{}) (*models.Transaction, []*models.TransactionLineItem) {
	transactionId, _ := rec.TransactionID.Int64()
	clientId, _ := rec.ClientID.Int64()
	spotId, _ := rec.SpotID.Int64()
	payType, _ := rec.PayType.Int64()
	printFiscal, _ := rec.PrintFiscal.Int64()
	status, _ := rec.Status.Int64()

	dateClose := parsePosterTransactionTime(rec.DateClose)

	transaction := &models.Transaction{
		TransactionID:   transactionId,
		ClientRef:       refOrNil(clientId, clients),
		SpotRef:         refOrNil(spotId, spots),
		DateStart:       parsePosterTransactionTime(rec.DateStart),
		DateClose:       dateClose,
		Sum:             utils.DecimalFromNumber(rec.Sum),
		PayedSum:        utils.DecimalFromNumber(rec.PayedSum),
		PayedCash:       utils.DecimalFromNumber(rec.PayedCash),
		PayedCard:       utils.DecimalFromNumber(rec.PayedCard),
		PayedCert:       utils.DecimalFromNumber(rec.PayedCert),
		PayedBonus:      utils.DecimalFromNumber(rec.PayedBonus),
		PayedThirdParty: utils.DecimalFromNumber(rec.PayedThird),
		RoundSum:        utils.DecimalFromNumber(rec.RoundSum),
		TipSum:          utils.DecimalFromNumber(rec.TipSum),
		PayType:         int(payType),
		Bonus:           utils.DecimalFromNumber(rec.Bonus),
		PrintFiscal:     int(printFiscal),
		Status:          int(status),
		RawData:         raw,
		SourceUpdatedAt: dateClose,
		LastSyncedAt:    &now,
	}

	lineItems := make([]*models.TransactionLineItem, 0, len(rec.Products))
	for i, p := range rec.Products {
		productId, _ := p.ProductID.Int64()
		taxId, _ := p.TaxID.Int64()
		lineItems = append(lineItems, &models.TransactionLineItem{
			TransactionID: transactionId,
			Position:      i,
			PosProductID:  productId,
			ProductRef:    refOrNil(productId, products),
			ProductName:   strings.TrimSpace(p.ProductName),
			Count:         utils.DecimalFromNumber(p.Num),
			Price:         utils.DecimalFromNumber(p.Price),
			Sum:           utils.DecimalFromNumber(p.ProductSum),
			Discount:      utils.DecimalFromNumber(p.Discount),
			Bonus:         utils.DecimalFromNumber(p.Bonus),
			BonusAccrued:  utils.DecimalFromNumber(p.BonusSum),
			TaxID:         taxId,
			TaxValue:      utils.DecimalFromNumber(p.TaxValue),
			TaxSum:        utils.DecimalFromNumber(p.TaxSum),
		})
	}
	return transaction, lineItems
}

func transactionUpdateMap(t *models.Transaction) map[string]interface{} {
	return map[string]interface{}{
		"client_ref":        t.ClientRef,
		"spot_ref":          t.SpotRef,
		"date_start":        t.DateStart,
		"date_close":        t.DateClose,
		"sum":               t.Sum,
		"payed_sum":         t.PayedSum,
		"payed_cash":        t.PayedCash,
		"payed_card":        t.PayedCard,
		"payed_cert":        t.PayedCert,
		"payed_bonus":       t.PayedBonus,
		"payed_third_party": t.PayedThirdParty,
		"round_sum":         t.RoundSum,
		"tip_sum":           t.TipSum,
		"pay_type":          t.PayType,
		"bonus":             t.Bonus,
		"print_fiscal":      t.PrintFiscal,
		"status":            t.Status,
		"raw_data":          t.RawData,
		"source_updated_at": t.SourceUpdatedAt,
		"last_synced_at":    t.LastSyncedAt,
	}
}

// The transactions endpoint serves dates as millisecond epochs, older
// exports as "2006-01-02 15:04:05".
func parsePosterTransactionTime(value string) *time.Time {
	if t := utils.ParsePosTimestampMs(value); t != nil {
		return t
	}
	return utils.ParsePosTime(value)
}

func createSyncError(ctx context.Context, db *gorm.DB, runId uint, entityType string, externalId string, code string, message string, payload []byte, retryable bool) error {
	errRec := models.SyncError{
		SyncRunId:   runId,
		EntityType:  entityType,
		ExternalId:  externalId,
		ErrorCode:   code,
		Message:     message,
		PayloadJSON: payload,
		Retryable:   retryable,
	}
	return db.WithContext(ctx).Create(&errRec).Error
}

func intFromEnvDefault(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
