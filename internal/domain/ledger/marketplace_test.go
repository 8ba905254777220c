package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/modelmarket/internal/domain/funds"
	"github.com/okian/modelmarket/internal/domain/ledger"
	"github.com/okian/modelmarket/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewMarketplace(t *testing.T) {
	Convey("Given a registry", t, func() {
		reg := ledger.NewRegistry()

		Convey("When the fee exceeds 100%", func() {
			_, err := ledger.NewMarketplace(reg, market, treasury, ledger.MaxFeeBps+1)
			So(errors.Is(err, ledger.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the fee recipient is the zero address", func() {
			_, err := ledger.NewMarketplace(reg, market, model.ZeroAddress, 250)
			So(errors.Is(err, ledger.ErrInvalidRecipient), ShouldBeTrue)
		})

		Convey("When two marketplaces share an address", func() {
			_, err := ledger.NewMarketplace(reg, market, treasury, 250)
			So(err, ShouldBeNil)
			_, err = ledger.NewMarketplace(reg, market, treasury, 250)
			So(errors.Is(err, ledger.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestMarketplace(t *testing.T) {
	Convey("Given a minted asset and a marketplace charging 2.5%", t, func() {
		ctx := context.Background()
		bank := funds.NewBank()
		rec := &recorder{}
		reg := ledger.NewRegistry(ledger.WithSink(bank), ledger.WithNotifier(rec))
		m, err := ledger.NewMarketplace(reg, market, treasury, 250)
		So(err, ShouldBeNil)
		id, err := reg.Mint(ctx, deployer, owner, modelURI)
		So(err, ShouldBeNil)

		one := model.MustParseEther("1")
		So(bank.Deposit(ctx, buyer, 5*one), ShouldBeNil)

		Convey("Then an unlisted asset reads as an inactive listing", func() {
			l, err := m.Listing(id)
			So(err, ShouldBeNil)
			So(l, ShouldResemble, model.Listing{})
			_, err = m.Listing(99)
			So(errors.Is(err, ledger.ErrUnknownAsset), ShouldBeTrue)
		})

		Convey("When listing without approving the marketplace", func() {
			err := m.ListModel(ctx, owner, id, one)
			So(errors.Is(err, ledger.ErrUnauthorized), ShouldBeTrue)
			got, _ := reg.OwnerOf(id)
			So(got, ShouldEqual, owner)
		})

		Convey("When a non-owner lists", func() {
			So(reg.Approve(ctx, owner, id, market), ShouldBeNil)
			err := m.ListModel(ctx, other, id, one)
			So(errors.Is(err, ledger.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("When listing at a zero price", func() {
			So(reg.Approve(ctx, owner, id, market), ShouldBeNil)
			err := m.ListModel(ctx, owner, id, 0)
			So(errors.Is(err, ledger.ErrInvalidPrice), ShouldBeTrue)
		})

		Convey("When listing an unknown asset", func() {
			err := m.ListModel(ctx, owner, 99, one)
			So(errors.Is(err, ledger.ErrUnknownAsset), ShouldBeTrue)
		})

		Convey("When the owner approves and lists for 1 ether", func() {
			So(reg.Approve(ctx, owner, id, market), ShouldBeNil)
			So(m.ListModel(ctx, owner, id, one), ShouldBeNil)

			Convey("Then the marketplace holds the asset and the listing is active", func() {
				got, _ := reg.OwnerOf(id)
				So(got, ShouldEqual, market)
				l, err := m.Listing(id)
				So(err, ShouldBeNil)
				So(l, ShouldResemble, model.Listing{Seller: owner, Price: one, IsActive: true})
				So(m.ActiveListings(), ShouldResemble, []model.AssetID{id})
				So(reg.Stats().ActiveListings, ShouldEqual, 1)
			})

			Convey("Then the escrowed asset cannot be moved directly", func() {
				err := reg.Transfer(ctx, owner, id, other)
				So(errors.Is(err, ledger.ErrUnauthorized), ShouldBeTrue)
				err = reg.Transfer(ctx, market, id, other)
				So(errors.Is(err, ledger.ErrUnauthorized), ShouldBeTrue)
			})

			Convey("Then listing it again is rejected", func() {
				err := m.ListModel(ctx, owner, id, one)
				So(errors.Is(err, ledger.ErrAlreadyListed), ShouldBeTrue)
			})

			Convey("And a buyer pays the exact price", func() {
				s, err := m.BuyModel(ctx, buyer, id, one)
				So(err, ShouldBeNil)

				Convey("Then the fee and proceeds are settled", func() {
					So(s.Fee, ShouldEqual, model.MustParseEther("0.025"))
					So(s.SellerProceeds, ShouldEqual, model.MustParseEther("0.975"))
					So(s.Refund, ShouldEqual, model.Amount(0))
					So(bank.Balance(ctx, owner), ShouldEqual, model.MustParseEther("0.975"))
					So(bank.Balance(ctx, treasury), ShouldEqual, model.MustParseEther("0.025"))
					So(bank.Balance(ctx, buyer), ShouldEqual, 4*one)
				})

				Convey("Then the buyer owns the asset and the listing is closed", func() {
					got, _ := reg.OwnerOf(id)
					So(got, ShouldEqual, buyer)
					l, _ := m.Listing(id)
					So(l.IsActive, ShouldBeFalse)
					So(m.ActiveListings(), ShouldBeEmpty)
				})

				Convey("Then events arrive in commit order", func() {
					So(rec.kinds(), ShouldResemble, []model.EventKind{
						model.EventMinted,
						model.EventApproval,
						model.EventTransfer,
						model.EventListed,
						model.EventTransfer,
						model.EventSold,
					})
				})

				Convey("And buying again is rejected", func() {
					_, err := m.BuyModel(ctx, buyer, id, one)
					So(errors.Is(err, ledger.ErrNotListed), ShouldBeTrue)
				})
			})

			Convey("And a buyer overpays", func() {
				s, err := m.BuyModel(ctx, buyer, id, 2*one)
				So(err, ShouldBeNil)

				Convey("Then the excess is refunded", func() {
					So(s.Refund, ShouldEqual, one)
					So(bank.Balance(ctx, buyer), ShouldEqual, 4*one)
				})
			})

			Convey("And a buyer underpays", func() {
				_, err := m.BuyModel(ctx, buyer, id, model.MustParseEther("0.5"))

				Convey("Then nothing changes", func() {
					So(errors.Is(err, ledger.ErrInsufficientPayment), ShouldBeTrue)
					got, _ := reg.OwnerOf(id)
					So(got, ShouldEqual, market)
					l, _ := m.Listing(id)
					So(l.IsActive, ShouldBeTrue)
					So(bank.Balance(ctx, buyer), ShouldEqual, 5*one)
				})
			})

			Convey("And the seller rejects payment", func() {
				bank.SetRejecting(owner, true)
				_, err := m.BuyModel(ctx, buyer, id, one)

				Convey("Then the settlement fails and reverts", func() {
					So(errors.Is(err, ledger.ErrSettlementFailed), ShouldBeTrue)
					So(bank.Balance(ctx, buyer), ShouldEqual, 5*one)
					So(bank.Balance(ctx, treasury), ShouldEqual, model.Amount(0))
					got, _ := reg.OwnerOf(id)
					So(got, ShouldEqual, market)
					l, _ := m.Listing(id)
					So(l.IsActive, ShouldBeTrue)
				})
			})

			Convey("And a buyer that refuses credits overpays", func() {
				bank.SetRejecting(buyer, true)
				_, err := m.BuyModel(ctx, buyer, id, 2*one)

				Convey("Then the settlement fails and the payment is returned", func() {
					So(errors.Is(err, ledger.ErrSettlementFailed), ShouldBeTrue)
					So(errors.Is(err, funds.ErrRollback), ShouldBeFalse)
					So(bank.Balance(ctx, buyer), ShouldEqual, 5*one)
					So(bank.Balance(ctx, owner), ShouldEqual, model.Amount(0))
					So(bank.Balance(ctx, treasury), ShouldEqual, model.Amount(0))
					got, _ := reg.OwnerOf(id)
					So(got, ShouldEqual, market)
					l, _ := m.Listing(id)
					So(l.IsActive, ShouldBeTrue)
				})
			})

			Convey("And a stranger cancels", func() {
				err := m.CancelListing(ctx, other, id)
				So(errors.Is(err, ledger.ErrUnauthorized), ShouldBeTrue)
			})

			Convey("And the seller cancels", func() {
				So(m.CancelListing(ctx, owner, id), ShouldBeNil)

				Convey("Then the asset returns to the seller", func() {
					got, _ := reg.OwnerOf(id)
					So(got, ShouldEqual, owner)
					l, _ := m.Listing(id)
					So(l.IsActive, ShouldBeFalse)
					So(reg.Stats().ActiveListings, ShouldEqual, 0)
				})

				Convey("And cancelling again is rejected", func() {
					err := m.CancelListing(ctx, owner, id)
					So(errors.Is(err, ledger.ErrNotListed), ShouldBeTrue)
				})
			})
		})

		Convey("When the owner lists through an operator grant", func() {
			So(reg.SetApprovalForAll(ctx, owner, market, true), ShouldBeNil)
			So(m.ListModel(ctx, owner, id, one), ShouldBeNil)
			got, _ := reg.OwnerOf(id)
			So(got, ShouldEqual, market)
		})

		Convey("When buying an asset that is not listed", func() {
			_, err := m.BuyModel(ctx, buyer, id, one)
			So(errors.Is(err, ledger.ErrNotListed), ShouldBeTrue)
		})

		Convey("When transferring directly to the marketplace", func() {
			err := reg.Transfer(ctx, owner, id, market)
			So(errors.Is(err, ledger.ErrInvalidRecipient), ShouldBeTrue)
		})
	})
}
