package mysql

const insertCleanPrefix = "INSERT INTO clean_listings\n  (source, row_idx, price, category, columns_raw)\nVALUES "

const insertCleanOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  price       = VALUES(price),\n" +
	"  category    = VALUES(category),\n" +
	"  columns_raw = VALUES(columns_raw),\n" +
	"  updated_at  = CURRENT_TIMESTAMP\n"

const countCleanSQL = `SELECT COUNT(*) FROM clean_listings`

const countByCategorySQL = `
SELECT category, COUNT(*)
FROM clean_listings
WHERE category IS NOT NULL
GROUP BY category
ORDER BY category
`
