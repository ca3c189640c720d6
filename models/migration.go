package models

import (
	"log"

	"bitbucket.org/ostrovlabs/loyalty_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Client{}, &Spot{}, &Product{},
		&Transaction{}, &TransactionLineItem{},
		&BonusLedgerEntry{},
		&ReportBatch{}, &FiscalLineItem{},
		&PosConnection{}, &SyncRun{}, &SyncError{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
