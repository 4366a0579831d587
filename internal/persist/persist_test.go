package persist

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/wbparser/catalog-crawler/internal/catalog"
	"github.com/wbparser/catalog-crawler/pkg/logger"
)

type mockPool struct {
	mock pgxmock.PgxPoolIface
}

func (m *mockPool) Begin(ctx context.Context) (pgx.Tx, error) { return m.mock.Begin(ctx) }
func (m *mockPool) Close()                                    {}

func testCard() catalog.Card {
	return catalog.Card{
		Brand:   catalog.Brand{ID: 7, Name: "Acme"},
		Item:    catalog.Item{ID: 42, CategoryID: 9, Name: "Jacket", BrandID: 7},
		Article: catalog.Article{ID: 142, ItemID: 42, ColorID: 1},
		Colors:  []catalog.Color{{ID: 1, Name: "black"}},
		History: catalog.ArticleHistory{
			Timestamp: time.Unix(1700000000, 0), PriceFull: 5000,
			PriceWithDiscount: 4000, Sale: 20, Rating: 4.8, Feedbacks: 10,
		},
		SizeStock: map[catalog.Size]int{{Name: "M"}: 2},
	}
}

func TestPersistCardInsertsReferenceDataAndHistory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO colors").WithArgs(1, "black").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO brands").WithArgs(7, "Acme").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO goods").WithArgs(42, 9, "Jacket", 7).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO articles").WithArgs(142, 42, 1).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("INSERT INTO article_history").WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(100))
	mock.ExpectQuery("INSERT INTO sizes").WithArgs("M").WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectExec("INSERT INTO goods_history_size").WithArgs(100, 5, 2).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	p := New(&mockPool{mock: mock}, logger.NewNoop())

	require.NoError(t, p.PersistCard(context.Background(), testCard()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistCardRollsBackOnFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO colors").WithArgs(1, "black").WillReturnError(pgx.ErrTxClosed)
	mock.ExpectRollback()

	p := New(&mockPool{mock: mock}, logger.NewNoop())

	err = p.PersistCard(context.Background(), testCard())
	require.Error(t, err)

	var persistErr *catalog.PersistenceError
	require.ErrorAs(t, err, &persistErr)
	require.NoError(t, mock.ExpectationsWereMet())
}
