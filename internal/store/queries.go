package store

// Queries shared by the postgres and sqlite backends. Placeholders are written with '?'
// and rebound to '$n' for postgres.

const selectProduct = `
SELECT id, store_id, name, coalesce(category, 'General') AS category, custom_id, price,
       CAST(coalesce(stock, 1) AS INTEGER) AS stock
FROM products`

const findProductByID = selectProduct + `
WHERE id = ? AND store_id = ?
LIMIT 1`

const findProductByCustomID = selectProduct + `
WHERE custom_id = ? AND store_id = ?
LIMIT 1`

const findProductsByStore = selectProduct + `
WHERE store_id = ?
ORDER BY id DESC`

// The conflict target names the partial unique index on (store_id, phone).
const upsertCustomerUpdateName = `
INSERT INTO customers (store_id, name, phone)
VALUES (?, ?, ?)
ON CONFLICT (store_id, phone) WHERE phone <> 'anonymous'
DO UPDATE SET name = excluded.name
RETURNING id`

// Updating the name to itself makes RETURNING yield the existing id.
const upsertCustomerKeepName = `
INSERT INTO customers (store_id, name, phone)
VALUES (?, ?, ?)
ON CONFLICT (store_id, phone) WHERE phone <> 'anonymous'
DO UPDATE SET name = customers.name
RETURNING id`

const createCustomer = `
INSERT INTO customers (store_id, name, phone)
VALUES (?, ?, ?)
RETURNING id`

const decrementStock = `
UPDATE products
SET stock = coalesce(stock, 1) - ?
WHERE id = ? AND store_id = ? AND coalesce(stock, 1) >= ?`

const createPurchase = `
INSERT INTO purchases (store_id, customer_id, product_id, quantity, total_amount, transaction_id, payment_method)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id`
