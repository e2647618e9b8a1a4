package ledger

import "github.com/shopspring/decimal"

// GasSchedule prices an invocation by the storage work it does. The fee of a
// call is Price * (Base + Read*reads + Write*writes), paid by the caller in
// native base units.
type GasSchedule struct {
	Base  int64           `yaml:"Base"`
	Read  int64           `yaml:"Read"`
	Write int64           `yaml:"Write"`
	Price decimal.Decimal `yaml:"Price"`
}

// DefaultGasSchedule returns the schedule used when none is configured.
func DefaultGasSchedule() GasSchedule {
	return GasSchedule{
		Base:  21000,
		Read:  2100,
		Write: 5000,
		Price: decimal.NewFromInt(1000000000),
	}
}

func (g GasSchedule) used(reads, writes int64) int64 {
	return g.Base + g.Read*reads + g.Write*writes
}
