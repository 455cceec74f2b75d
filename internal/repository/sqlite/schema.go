package sqlite

const schema = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS tests (
  id         TEXT PRIMARY KEY,
  title      TEXT NOT NULL,
  join_code  TEXT NOT NULL UNIQUE,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id            TEXT PRIMARY KEY,
  test_id       TEXT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
  question_text TEXT NOT NULL,
  question_type TEXT NOT NULL,
  max_score     REAL NOT NULL,
  min_score     REAL NOT NULL DEFAULT 0,
  essay_mode    TEXT NOT NULL DEFAULT '',
  answer_key    TEXT NOT NULL DEFAULT '',
  order_num     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS options (
  id          TEXT PRIMARY KEY,
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  option_text TEXT NOT NULL,
  is_correct  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS participants (
  id           TEXT PRIMARY KEY,
  test_id      TEXT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
  name         TEXT NOT NULL,
  is_completed INTEGER NOT NULL DEFAULT 0,
  started_at   INTEGER NOT NULL,
  completed_at INTEGER
);

CREATE TABLE IF NOT EXISTS answers (
  id             TEXT PRIMARY KEY,
  participant_id TEXT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
  question_id    TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  answer_type    TEXT NOT NULL,
  option_id      TEXT,
  option_ids     TEXT NOT NULL DEFAULT '[]',
  essay_text     TEXT NOT NULL DEFAULT '',
  score          REAL,
  revision       INTEGER NOT NULL DEFAULT 1,
  updated_at     INTEGER NOT NULL,
  UNIQUE (participant_id, question_id)
);

CREATE INDEX IF NOT EXISTS idx_options_question ON options(question_id);
CREATE INDEX IF NOT EXISTS idx_answers_participant ON answers(participant_id);
`
