package extraction

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSchema(t *testing.T) {
	s := DefaultSchema()

	assert.Equal(t, []string{
		"Earnings", "Overtime", "CommissionBonus", "BonusWinners",
		"Deductions", "EOBI", "PF", "Tax", "Medical",
	}, s.Keys())

	f, ok := s.Field("CommissionBonus")
	require.True(t, ok)
	assert.True(t, f.Hidden)
	assert.True(t, f.Default.IsZero())

	earnings, _ := s.Field("Earnings")
	assert.True(t, earnings.Required)
}

func TestNewSchema(t *testing.T) {
	t.Run("keeps declared order", func(t *testing.T) {
		s, err := NewSchema(
			FieldSpec{Label: "B label", Key: "B"},
			FieldSpec{Label: "A label", Key: "A", Default: decimal.NewFromInt(5)},
		)
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "A"}, s.Keys())
		assert.True(t, s.Has("A"))
		assert.False(t, s.Has("C"))
	})

	t.Run("fields are copied", func(t *testing.T) {
		s := DefaultSchema()
		fields := s.Fields()
		fields[0].Key = "changed"
		assert.Equal(t, "Earnings", s.Keys()[0])
	})

	tests := []struct {
		name    string
		fields  []FieldSpec
		wantErr error
	}{
		{name: "empty", fields: nil, wantErr: ErrEmptySchema},
		{name: "missing key", fields: []FieldSpec{{Label: "Tax"}}, wantErr: ErrInvalidField},
		{name: "missing label", fields: []FieldSpec{{Key: "Tax"}}, wantErr: ErrInvalidField},
		{name: "operator in key", fields: []FieldSpec{{Label: "Net", Key: "Gross-Net"}}, wantErr: ErrInvalidField},
		{
			name:    "duplicate key",
			fields:  []FieldSpec{{Label: "Tax", Key: "Tax"}, {Label: "Payroll Tax", Key: "Tax"}},
			wantErr: ErrDuplicateKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(tt.fields...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{Key: "Tax", Err: ErrDuplicateKey, Detail: "declared twice"}
	assert.Equal(t, `schema config: key "Tax": duplicate key: declared twice`, err.Error())
}
