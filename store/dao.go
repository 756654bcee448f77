package store

import (
	"fmt"
	"github.com/egaotan/solana-crowdsale/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Dao struct {
	db *gorm.DB
}

// Dialector picks the gorm driver for the configured database.
func Dialector(cfg *config.Database) (gorm.Dialector, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case config.DriverMysql:
		return mysql.Open(dsn), nil
	case config.DriverPostgres:
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func NewDao(cfg *config.Database) (*Dao, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if err := db.AutoMigrate(&Execution{}, &Sale{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Dao{db: db}, nil
}

func (dao *Dao) SaveExecution(execution *Execution) error {
	return dao.db.Create(execution).Error
}

func (dao *Dao) SaveSale(sale *Sale) error {
	return dao.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(sale).Error
}

func (dao *Dao) SelectExecutions(sale string) ([]*Execution, error) {
	executions := make([]*Execution, 0)
	res := dao.db.Where("sale = ?", sale).Order("slot, position").Find(&executions)
	return executions, res.Error
}

func (dao *Dao) SelectSale(address string) (*Sale, error) {
	sale := &Sale{}
	res := dao.db.Where("address = ?", address).Take(sale)
	return sale, res.Error
}
