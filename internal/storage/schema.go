package storage

const schema = `
-- The 'decks' table tracks the origin of the cards, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS decks (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    owner_id TEXT NOT NULL DEFAULT '', -- empty: shared with every learner
    last_scanned DATETIME
);

-- The 'cards' table stores the content of each flashcard. The id is a content hash.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    deck_id TEXT NOT NULL,
    kind TEXT NOT NULL, -- basic, cloze, multiple_choice, explanation
    front TEXT NOT NULL,
    back TEXT NOT NULL DEFAULT '',
    explanation TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    mnemonic TEXT NOT NULL DEFAULT '',
    choices TEXT NOT NULL DEFAULT '[]', -- JSON array of {text, correct}
    position INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY(deck_id) REFERENCES decks(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_cards_deck ON cards(deck_id, position);

-- The 'memory_states' table holds the current FSRS state per learner and card.
CREATE TABLE IF NOT EXISTS memory_states (
    learner_id TEXT NOT NULL,
    card_id TEXT NOT NULL,
    deck_id TEXT NOT NULL,
    stability REAL NOT NULL,
    difficulty REAL NOT NULL,
    interval_days INTEGER NOT NULL,
    due_at DATETIME NOT NULL,
    last_reviewed_at DATETIME NOT NULL,
    reps INTEGER NOT NULL DEFAULT 0,
    lapses INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL DEFAULT 1,

    PRIMARY KEY(learner_id, card_id),
    FOREIGN KEY(card_id) REFERENCES cards(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_memory_states_deck ON memory_states(learner_id, deck_id, due_at);

-- The 'study_sessions' table groups reviews of one sitting.
CREATE TABLE IF NOT EXISTS study_sessions (
    id TEXT PRIMARY KEY,
    learner_id TEXT NOT NULL,
    deck_id TEXT NOT NULL,
    started_at DATETIME NOT NULL,
    ended_at DATETIME,
    active_seconds INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY(deck_id) REFERENCES decks(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_study_sessions_learner ON study_sessions(learner_id, deck_id);

-- The 'reviews' table is the append-only review log.
CREATE TABLE IF NOT EXISTS reviews (
    id TEXT PRIMARY KEY,
    learner_id TEXT NOT NULL,
    card_id TEXT NOT NULL,
    deck_id TEXT NOT NULL,
    session_id TEXT,
    rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 4),
    scheduled_for DATETIME,
    reviewed_at DATETIME NOT NULL,
    interval_days INTEGER NOT NULL,
    stability REAL NOT NULL,
    difficulty REAL NOT NULL,
    time_spent_seconds INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY(card_id) REFERENCES cards(id) ON DELETE CASCADE,
    FOREIGN KEY(session_id) REFERENCES study_sessions(id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_reviews_learner_deck ON reviews(learner_id, deck_id, reviewed_at);
CREATE INDEX IF NOT EXISTS idx_reviews_session ON reviews(session_id);

-- The 'deck_scores' table caches periodically recomputed deck summaries.
CREATE TABLE IF NOT EXISTS deck_scores (
    learner_id TEXT NOT NULL,
    deck_id TEXT NOT NULL,
    score_window TEXT NOT NULL,
    accuracy_percent REAL NOT NULL,
    avg_stability REAL NOT NULL,
    lapse_count INTEGER NOT NULL,
    computed_at DATETIME NOT NULL,

    PRIMARY KEY(learner_id, deck_id, score_window),
    FOREIGN KEY(deck_id) REFERENCES decks(id) ON DELETE CASCADE
);
`
