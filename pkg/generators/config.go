package generators

import (
	"fmt"
	"time"

	"github.com/datasynth/synth/internal/utils"
	"github.com/spf13/viper"
)

const DEFAULT_CONFIG_KEY = "generation"

const dateLayout = "2006-01-02"

// Config holds the business parameters of a generation run.
type Config struct {
	Seed        uint64 `mapstructure:"seed"`
	CompanyCode string `mapstructure:"company_code" validate:"required"`
	Currency    string `mapstructure:"currency" validate:"required,len=3"`
	StartDate   string `mapstructure:"start_date" validate:"required,datetime=2006-01-02"`
	// PeriodMonths is how many months of postings are spread after StartDate
	PeriodMonths int    `mapstructure:"period_months" validate:"gte=1,lte=120"`
	Complexity   string `mapstructure:"complexity" validate:"oneof=small medium large"`

	Vendors          int `mapstructure:"vendors" validate:"gte=0"`
	Customers        int `mapstructure:"customers" validate:"gte=0"`
	Materials        int `mapstructure:"materials" validate:"gte=0"`
	Employees        int `mapstructure:"employees" validate:"gte=0"`
	DocumentFlows    int `mapstructure:"document_flows" validate:"gte=0"`
	JournalEntries   int `mapstructure:"journal_entries" validate:"gte=0"`
	BankTransactions int `mapstructure:"bank_transactions" validate:"gte=0"`

	AnomalyRate     float64 `mapstructure:"anomaly_rate" validate:"gte=0,lte=1"`
	DataQualityRate float64 `mapstructure:"data_quality_rate" validate:"gte=0,lte=1"`
}

func DefaultConfig() Config {
	return Config{
		Seed:             42,
		CompanyCode:      "1000",
		Currency:         "USD",
		StartDate:        "2024-01-01",
		PeriodMonths:     12,
		Complexity:       "small",
		Vendors:          50,
		Customers:        100,
		Materials:        50,
		Employees:        20,
		DocumentFlows:    200,
		JournalEntries:   1000,
		BankTransactions: 200,
		AnomalyRate:      0.02,
		DataQualityRate:  0.05,
	}
}

// Start parses StartDate, falling back to the first of January 2024.
func (c Config) Start() time.Time {
	t, err := time.Parse(dateLayout, c.StartDate)
	if err != nil {
		return time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

func ConfigFromViper(key *string) (Config, error) {
	var keyValue string
	if key == nil {
		keyValue = DEFAULT_CONFIG_KEY
	} else {
		keyValue = *key
	}

	generationConfig := viper.Sub(keyValue)
	if generationConfig == nil {
		generationConfig = viper.New()
	}

	generationConfig.BindEnv("seed", "DATASYNTH_GENERATION_SEED")
	generationConfig.BindEnv("company_code", "DATASYNTH_GENERATION_COMPANY_CODE")
	generationConfig.BindEnv("journal_entries", "DATASYNTH_GENERATION_JOURNAL_ENTRIES")
	generationConfig.BindEnv("complexity", "DATASYNTH_GENERATION_COMPLEXITY")

	defaults := DefaultConfig()
	generationConfig.SetDefault("seed", defaults.Seed)
	generationConfig.SetDefault("company_code", defaults.CompanyCode)
	generationConfig.SetDefault("currency", defaults.Currency)
	generationConfig.SetDefault("start_date", defaults.StartDate)
	generationConfig.SetDefault("period_months", defaults.PeriodMonths)
	generationConfig.SetDefault("complexity", defaults.Complexity)
	generationConfig.SetDefault("vendors", defaults.Vendors)
	generationConfig.SetDefault("customers", defaults.Customers)
	generationConfig.SetDefault("materials", defaults.Materials)
	generationConfig.SetDefault("employees", defaults.Employees)
	generationConfig.SetDefault("document_flows", defaults.DocumentFlows)
	generationConfig.SetDefault("journal_entries", defaults.JournalEntries)
	generationConfig.SetDefault("bank_transactions", defaults.BankTransactions)
	generationConfig.SetDefault("anomaly_rate", defaults.AnomalyRate)
	generationConfig.SetDefault("data_quality_rate", defaults.DataQualityRate)

	var cfg Config
	err := generationConfig.Unmarshal(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %v", err)
	}

	err = utils.ValidateStruct(&cfg)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
