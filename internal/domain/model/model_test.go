package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	model "github.com/okian/modelmarket/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestParseAddress(t *testing.T) {
	convey.Convey("Given address strings", t, func() {
		convey.Convey("When the address is well formed", func() {
			a, err := model.ParseAddress("0xAbCdEf0000000000000000000000000000000001")

			convey.Convey("Then it should be canonicalized to lower case", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(a, convey.ShouldEqual, model.Address("0xabcdef0000000000000000000000000000000001"))
				convey.So(a.IsZero(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the address is malformed", func() {
			for _, s := range []string{"", "abc", "0x123", "0xzz00000000000000000000000000000000000000", "1x0000000000000000000000000000000000000001"} {
				_, err := model.ParseAddress(s)
				convey.So(err, convey.ShouldEqual, model.ErrInvalidAddress)
			}
		})

		convey.Convey("Then the null identity and empty string should be zero", func() {
			convey.So(model.ZeroAddress.IsZero(), convey.ShouldBeTrue)
			convey.So(model.Address("").IsZero(), convey.ShouldBeTrue)
		})
	})
}

func TestUnits(t *testing.T) {
	convey.Convey("Given decimal unit strings", t, func() {
		convey.Convey("When parsing ether values", func() {
			one, err := model.ParseEther("1.0")
			convey.So(err, convey.ShouldBeNil)
			convey.So(one, convey.ShouldEqual, model.Amount(1_000_000_000_000_000_000))

			frac, err := model.ParseEther("0.975")
			convey.So(err, convey.ShouldBeNil)
			convey.So(frac, convey.ShouldEqual, model.Amount(975_000_000_000_000_000))

			half, err := model.ParseEther(".5")
			convey.So(err, convey.ShouldBeNil)
			convey.So(half, convey.ShouldEqual, model.Amount(500_000_000_000_000_000))
		})

		convey.Convey("When parsing invalid values", func() {
			for _, s := range []string{"", "-1", "abc", "1.0000000000000000001", "100"} {
				_, err := model.ParseEther(s)
				convey.So(err, convey.ShouldNotBeNil)
			}
		})

		convey.Convey("When parsing at the representable limit", func() {
			limit, err := model.ParseEther("18.446744073709551615")
			convey.So(err, convey.ShouldBeNil)
			convey.So(limit, convey.ShouldEqual, model.MaxAmount)

			_, err = model.ParseEther("18.446744073709551616")
			convey.So(errors.Is(err, model.ErrInvalidAmount), convey.ShouldBeTrue)
			_, err = model.ParseEther("19")
			convey.So(errors.Is(err, model.ErrInvalidAmount), convey.ShouldBeTrue)
		})

		convey.Convey("When formatting values", func() {
			convey.So(model.FormatUnits(975_000_000_000_000_000, 18), convey.ShouldEqual, "0.975")
			convey.So(model.FormatUnits(2_000_000_000_000_000_000, 18), convey.ShouldEqual, "2")
			convey.So(model.FormatUnits(0, 18), convey.ShouldEqual, "0")
			convey.So(model.FormatUnits(42, 0), convey.ShouldEqual, "42")
		})
	})
}

func TestAmountJSON(t *testing.T) {
	convey.Convey("Given an amount", t, func() {
		a := model.Amount(18_000_000_000_000_000_001)

		convey.Convey("When encoding to JSON", func() {
			b, err := json.Marshal(a)

			convey.Convey("Then it should be a decimal string", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(b), convey.ShouldEqual, `"18000000000000000001"`)
			})
		})

		convey.Convey("When decoding strings and numbers", func() {
			var fromString, fromNumber model.Amount
			convey.So(json.Unmarshal([]byte(`"250"`), &fromString), convey.ShouldBeNil)
			convey.So(json.Unmarshal([]byte(`250`), &fromNumber), convey.ShouldBeNil)
			convey.So(fromString, convey.ShouldEqual, model.Amount(250))
			convey.So(fromNumber, convey.ShouldEqual, model.Amount(250))

			var bad model.Amount
			convey.So(json.Unmarshal([]byte(`"-1"`), &bad), convey.ShouldNotBeNil)
		})
	})
}

func TestProfitConfigClone(t *testing.T) {
	convey.Convey("Given a profit config", t, func() {
		cfg := model.ProfitConfig{
			Beneficiaries: []model.Address{"0x0000000000000000000000000000000000000001"},
			Shares:        []uint64{100},
		}

		convey.Convey("When the clone is mutated", func() {
			c := cfg.Clone()
			c.Shares[0] = 1

			convey.Convey("Then the original is unchanged", func() {
				convey.So(cfg.Shares[0], convey.ShouldEqual, 100)
			})
		})
	})
}
