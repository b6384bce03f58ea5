package storage

const schema = `
-- 'sources' tracks where cards come from: a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local', -- local | git
    grp TEXT NOT NULL DEFAULT '',
    last_scanned DATETIME
);

-- 'cards' stores each card with both its session and long-horizon scheduling state.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    prompt TEXT NOT NULL,
    response TEXT NOT NULL DEFAULT '',
    context TEXT NOT NULL DEFAULT '',
    grp TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,

    difficulty TEXT NOT NULL DEFAULT 'new', -- new | easy | medium | hard
    weight REAL NOT NULL DEFAULT 1.0,
    times_correct INTEGER NOT NULL DEFAULT 0,
    times_wrong INTEGER NOT NULL DEFAULT 0,
    last_seen DATETIME,

    tracked INTEGER NOT NULL DEFAULT 0, -- 1 when the long-horizon fields are live
    ease_factor REAL NOT NULL DEFAULT 2.5,
    review_count INTEGER NOT NULL DEFAULT 0,
    correct_streak INTEGER NOT NULL DEFAULT 0,
    next_review DATETIME
);

-- 'card_sources' records every source that currently holds a card's content.
-- A card is deleted only when no source holds it any more.
CREATE TABLE IF NOT EXISTS card_sources (
    card_id TEXT NOT NULL,
    source_id INTEGER NOT NULL,
    PRIMARY KEY (card_id, source_id),

    FOREIGN KEY(card_id) REFERENCES cards(id),
    FOREIGN KEY(source_id) REFERENCES sources(id)
);

-- 'reviews' is the append-only review history.
CREATE TABLE IF NOT EXISTS reviews (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id TEXT NOT NULL,
    session_id TEXT,
    was_correct INTEGER NOT NULL,
    quality INTEGER NOT NULL, -- 0-5
    interval_days INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,

    FOREIGN KEY(card_id) REFERENCES cards(id)
);

-- 'study_sessions' summarizes each study run.
CREATE TABLE IF NOT EXISTS study_sessions (
    id TEXT PRIMARY KEY,
    grp TEXT NOT NULL DEFAULT '',
    reviewed INTEGER NOT NULL DEFAULT 0,
    correct INTEGER NOT NULL DEFAULT 0,
    wrong INTEGER NOT NULL DEFAULT 0,
    started_at DATETIME NOT NULL,
    ended_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_cards_grp ON cards(grp);
CREATE INDEX IF NOT EXISTS idx_cards_next_review ON cards(next_review);
CREATE INDEX IF NOT EXISTS idx_card_sources_source ON card_sources(source_id);
CREATE INDEX IF NOT EXISTS idx_reviews_card ON reviews(card_id);
`
