package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"go-storefront/models"
)

// MongoStore implements Store on MongoDB. Documents use sequential int64
// IDs drawn from a counters collection so that every backend exposes the
// same identifiers. PlaceOrder needs a replica set for transactions.
type MongoStore struct {
	client     *mongo.Client
	users      *mongo.Collection
	products   *mongo.Collection
	carts      *mongo.Collection
	cartItems  *mongo.Collection
	orders     *mongo.Collection
	orderItems *mongo.Collection
	counters   *mongo.Collection
	now        func() time.Time
}

var _ Store = (*MongoStore)(nil)

// userDocument stores a lowercased copy of the email for the unique index.
type userDocument struct {
	models.User `bson:",inline"`
	EmailKey    string `bson:"email_key"`
}

// ConnectMongo opens a client and pings the primary
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// NewMongoStore uses the named database of an existing client.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client:     client,
		users:      db.Collection("users"),
		products:   db.Collection("products"),
		carts:      db.Collection("carts"),
		cartItems:  db.Collection("cart_items"),
		orders:     db.Collection("orders"),
		orderItems: db.Collection("order_items"),
		counters:   db.Collection("counters"),
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// EnsureIndexes creates the unique and lookup indexes the store relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.users, mongo.IndexModel{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique}},
		{s.users, mongo.IndexModel{Keys: bson.D{{Key: "email_key", Value: 1}}, Options: unique}},
		{s.products, mongo.IndexModel{Keys: bson.D{{Key: "category", Value: 1}}}},
		{s.carts, mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: unique}},
		{s.cartItems, mongo.IndexModel{Keys: bson.D{{Key: "cart_id", Value: 1}, {Key: "product_id", Value: 1}}, Options: unique}},
		{s.orders, mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}}}},
		{s.orderItems, mongo.IndexModel{Keys: bson.D{{Key: "order_id", Value: 1}}}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

// Close disconnects the client
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("allocate %s id: %w", name, err)
	}
	return counter.Seq, nil
}

func mapMongoError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", coll.Name(), err)
	}
	results := make([]T, 0)
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	if results == nil {
		results = make([]T, 0)
	}
	return results, nil
}

// Users ----------------------------------------------------------------------

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	return &doc.User, nil
}

func (s *MongoStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email_key": strings.ToLower(email)})
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	id, err := s.nextID(ctx, "users")
	if err != nil {
		return err
	}
	now := s.now()
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Addresses == nil {
		user.Addresses = []string{}
	}

	doc := userDocument{User: *user, EmailKey: strings.ToLower(user.Email)}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("create user: %w", mapMongoError(err))
	}
	return nil
}

func (s *MongoStore) UpdateUser(ctx context.Context, id int64, update models.UserUpdate) (*models.User, error) {
	set := bson.M{"updated_at": s.now()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Phone != nil {
		set["phone"] = *update.Phone
	}
	if update.Addresses != nil {
		set["addresses"] = append([]string{}, (*update.Addresses)...)
	}

	var doc userDocument
	err := s.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, mapMongoError(err)
	}
	return &doc.User, nil
}

// Products -------------------------------------------------------------------

func (s *MongoStore) GetProducts(ctx context.Context) ([]models.Product, error) {
	return findAll[models.Product](ctx, s.products, bson.M{})
}

func (s *MongoStore) GetFeaturedProducts(ctx context.Context) ([]models.Product, error) {
	return findAll[models.Product](ctx, s.products, bson.M{"featured": true})
}

func (s *MongoStore) GetProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	return findAll[models.Product](ctx, s.products, bson.M{"category": category})
}

func (s *MongoStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		return nil, mapMongoError(err)
	}
	return &product, nil
}

func (s *MongoStore) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}
	id, err := s.nextID(ctx, "products")
	if err != nil {
		return err
	}
	now := s.now()
	product.ID = id
	product.CreatedAt = now
	product.UpdatedAt = now
	if product.Tags == nil {
		product.Tags = []string{}
	}
	if _, err := s.products.InsertOne(ctx, product); err != nil {
		return fmt.Errorf("create product: %w", mapMongoError(err))
	}
	return nil
}

// UpdateProduct validates the merged product but only writes the changed
// fields, so a concurrent checkout's stock decrement is not overwritten
// unless the update sets stock itself.
func (s *MongoStore) UpdateProduct(ctx context.Context, id int64, update models.ProductUpdate) (*models.Product, error) {
	current, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	update.Apply(current)
	if err := validateProduct(current); err != nil {
		return nil, err
	}

	set := bson.M{"updated_at": s.now()}
	if update.Title != nil {
		set["title"] = current.Title
	}
	if update.Description != nil {
		set["description"] = current.Description
	}
	if update.Price != nil {
		set["price"] = current.Price
	}
	if update.ImageURL != nil {
		set["image_url"] = current.ImageURL
	}
	if update.Tags != nil {
		set["tags"] = append([]string{}, current.Tags...)
	}
	if update.Stock != nil {
		set["stock"] = current.Stock
	}
	if update.Category != nil {
		set["category"] = current.Category
	}
	if update.Featured != nil {
		set["featured"] = current.Featured
	}

	var product models.Product
	err = s.products.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&product)
	if err != nil {
		return nil, mapMongoError(err)
	}
	return &product, nil
}

func (s *MongoStore) DeleteProduct(ctx context.Context, id int64) error {
	result, err := s.products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// productsByID loads the given products; missing ones are absent from the map.
func (s *MongoStore) productsByID(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	products, err := findAll[models.Product](ctx, s.products, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// Carts ----------------------------------------------------------------------

func (s *MongoStore) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	if err := s.carts.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart); err != nil {
		return nil, mapMongoError(err)
	}
	return &cart, nil
}

func (s *MongoStore) CreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	id, err := s.nextID(ctx, "carts")
	if err != nil {
		return nil, err
	}
	now := s.now()
	cart := models.Cart{ID: id, UserID: userID, CreatedAt: now, UpdatedAt: now}
	if _, err := s.carts.InsertOne(ctx, cart); err != nil {
		return nil, fmt.Errorf("create cart: %w", mapMongoError(err))
	}
	return &cart, nil
}

func (s *MongoStore) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	cart, err := s.GetCart(ctx, userID)
	if !errors.Is(err, ErrNotFound) {
		return cart, err
	}
	cart, err = s.CreateCart(ctx, userID)
	if errors.Is(err, ErrDuplicate) {
		// another request created it first
		return s.GetCart(ctx, userID)
	}
	return cart, err
}

func (s *MongoStore) GetCartItems(ctx context.Context, cartID int64) ([]models.CartLine, error) {
	items, err := findAll[models.CartItem](ctx, s.cartItems, bson.M{"cart_id": cartID})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.productsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]models.CartLine, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, models.CartLine{CartItem: item, Product: product})
	}
	return lines, nil
}

func (s *MongoStore) touchCart(ctx context.Context, cartID int64) (bool, error) {
	result, err := s.carts.UpdateOne(ctx, bson.M{"_id": cartID}, bson.M{"$set": bson.M{"updated_at": s.now()}})
	if err != nil {
		return false, fmt.Errorf("touch cart %d: %w", cartID, err)
	}
	return result.MatchedCount > 0, nil
}

func (s *MongoStore) AddCartItem(ctx context.Context, cartID, productID int64, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	found, err := s.touchCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}

	id, err := s.nextID(ctx, "cart_items")
	if err != nil {
		return nil, err
	}
	upsert := func() (*models.CartItem, error) {
		var item models.CartItem
		err := s.cartItems.FindOneAndUpdate(ctx,
			bson.M{"cart_id": cartID, "product_id": productID},
			bson.M{
				"$inc":         bson.M{"quantity": quantity},
				"$setOnInsert": bson.M{"_id": id, "created_at": s.now()},
			},
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
		).Decode(&item)
		return &item, err
	}

	item, err := upsert()
	if mongo.IsDuplicateKeyError(err) {
		// concurrent upserts on the same line; the retry takes the $inc path
		item, err = upsert()
	}
	if err != nil {
		return nil, fmt.Errorf("add cart item: %w", mapMongoError(err))
	}
	return item, nil
}

func (s *MongoStore) UpdateCartItem(ctx context.Context, cartID, productID int64, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	var item models.CartItem
	err := s.cartItems.FindOneAndUpdate(ctx,
		bson.M{"cart_id": cartID, "product_id": productID},
		bson.M{"$set": bson.M{"quantity": quantity}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&item)
	if err != nil {
		return nil, mapMongoError(err)
	}
	if _, err := s.touchCart(ctx, cartID); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *MongoStore) RemoveCartItem(ctx context.Context, cartID, productID int64) error {
	result, err := s.cartItems.DeleteOne(ctx, bson.M{"cart_id": cartID, "product_id": productID})
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	_, err = s.touchCart(ctx, cartID)
	return err
}

func (s *MongoStore) ClearCart(ctx context.Context, cartID int64) error {
	found, err := s.touchCart(ctx, cartID)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	if _, err := s.cartItems.DeleteMany(ctx, bson.M{"cart_id": cartID}); err != nil {
		return fmt.Errorf("clear cart %d: %w", cartID, err)
	}
	return nil
}

// Orders ---------------------------------------------------------------------

func (s *MongoStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := s.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return nil, mapMongoError(err)
	}
	return &order, nil
}

func (s *MongoStore) GetUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	return findAll[models.Order](ctx, s.orders, bson.M{"user_id": userID})
}

func (s *MongoStore) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	items, err := findAll[models.OrderItem](ctx, s.orderItems, bson.M{"order_id": orderID})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.productsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]models.OrderLine, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, models.OrderLine{OrderItem: item, Product: product})
	}
	return lines, nil
}

// PlaceOrder runs the checkout in a multi-document transaction. Stock is
// decremented with a guarded update, so a product that sold out since the
// cart was read aborts the whole order.
func (s *MongoStore) PlaceOrder(ctx context.Context, userID int64, shippingAddress string) (*models.Order, error) {
	session, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		cart, err := s.GetCart(sc, userID)
		if errors.Is(err, ErrNotFound) {
			return nil, ErrEmptyCart
		}
		if err != nil {
			return nil, err
		}
		lines, err := s.GetCartItems(sc, cart.ID)
		if err != nil {
			return nil, err
		}
		if len(lines) == 0 {
			return nil, ErrEmptyCart
		}

		now := s.now()
		var total models.Money
		for _, line := range lines {
			res, err := s.products.UpdateOne(sc,
				bson.M{"_id": line.ProductID, "stock": bson.M{"$gte": line.Quantity}},
				bson.M{"$inc": bson.M{"stock": -line.Quantity}, "$set": bson.M{"updated_at": now}},
			)
			if err != nil {
				return nil, fmt.Errorf("decrement stock of product %d: %w", line.ProductID, err)
			}
			if res.MatchedCount == 0 {
				return nil, fmt.Errorf("%w for product %q", ErrInsufficientStock, line.Product.Title)
			}
			total = total.Plus(line.Subtotal())
		}

		orderID, err := s.nextID(sc, "orders")
		if err != nil {
			return nil, err
		}
		order := models.Order{
			ID:              orderID,
			UserID:          userID,
			Total:           total,
			Status:          models.OrderStatusPending,
			ShippingAddress: shippingAddress,
			PaymentStatus:   models.PaymentStatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if _, err := s.orders.InsertOne(sc, order); err != nil {
			return nil, fmt.Errorf("create order: %w", err)
		}

		items := make([]interface{}, 0, len(lines))
		for _, line := range lines {
			itemID, err := s.nextID(sc, "order_items")
			if err != nil {
				return nil, err
			}
			items = append(items, models.OrderItem{
				ID:        itemID,
				OrderID:   orderID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     line.Product.Price,
				CreatedAt: now,
			})
		}
		if _, err := s.orderItems.InsertMany(sc, items); err != nil {
			return nil, fmt.Errorf("create order items: %w", err)
		}

		if _, err := s.cartItems.DeleteMany(sc, bson.M{"cart_id": cart.ID}); err != nil {
			return nil, fmt.Errorf("clear cart %d: %w", cart.ID, err)
		}
		return &order, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Order), nil
}

// updateOrderField moves field from its current value to next with a
// compare-and-set, so two concurrent transitions cannot both succeed.
func (s *MongoStore) updateOrderField(ctx context.Context, id int64, field string, current, next any) (*models.Order, error) {
	var order models.Order
	err := s.orders.FindOneAndUpdate(ctx,
		bson.M{"_id": id, field: current},
		bson.M{"$set": bson.M{field: next, "updated_at": s.now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: order %d changed concurrently", ErrInvalidTransition, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update %s of order %d: %w", field, id, err)
	}
	return &order, nil
}

func (s *MongoStore) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOrderTransition(order.Status, status); err != nil {
		return nil, err
	}
	return s.updateOrderField(ctx, id, "status", order.Status, status)
}

func (s *MongoStore) UpdatePaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkPaymentTransition(order.PaymentStatus, status); err != nil {
		return nil, err
	}
	return s.updateOrderField(ctx, id, "payment_status", order.PaymentStatus, status)
}
