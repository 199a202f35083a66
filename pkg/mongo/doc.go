// Package mongo connects to MongoDB and stores machine histories in it.
//
// New connects with retries using Config. HistoryStore implements
// historystore.Store with one document per machine:
//
//	{ "_id": "<machine>", "entries": [ {"time": 1700000000, "action": "init", "state": "draft"}, ... ] }
//
// Append pushes with upsert, so the first write creates the document.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	store := mongo.NewHistoryStore(db.Collection(cfg.HistoryCollection))
package mongo
