package redis

import "github.com/redis/go-redis/v9"

// 全ての状態遷移は1つの Lua スクリプトとして実行され、Redis 上でアトミックになる
// 時刻は呼び出し側の時計からミリ秒の文字列で渡し、数値の書き込みは全て ARGV の文字列をそのまま使う
//
// キー:
//   ledger:{itinerary}:seat:{label}  座席ごとのハッシュ
//   ledger:{itinerary}:occupied      HELD/SOLD の座席ラベル集合
//   ledger:token:{token}             トークン索引
//   ledger:expiry                    仮押さえの期限（スコア=期限, メンバー=座席キー）
//   ledger:tombstones                期限切れトークン（スコア=回収時刻）
//
// スクリプト内で KEYS に渡していないキーを組み立てるため、単一ノードか Sentinel 構成の Redis が前提
// Redis Cluster では動かない
const luaPrelude = `
local function seat_key(itin, label) return 'ledger:' .. itin .. ':seat:' .. label end
local function occupied_key(itin) return 'ledger:' .. itin .. ':occupied' end
local function token_key(token) return 'ledger:token:' .. token end

local function hold_reply(code, key)
  local h = redis.call('HMGET', key, 'itinerary', 'seat', 'holder', 'token', 'status', 'created_at', 'expires_at', 'sold_at')
  return {code, h[1], h[2], h[3], h[4], h[5], h[6], h[7], h[8]}
end

local function is_expired(key, now)
  local h = redis.call('HMGET', key, 'status', 'expires_at')
  return h[1] == 'HELD' and now >= tonumber(h[2])
end

local function free(key, tomb_at)
  local h = redis.call('HMGET', key, 'itinerary', 'seat', 'token')
  local itin, label, token = h[1], h[2], h[3]
  redis.call('DEL', key)
  redis.call('SREM', occupied_key(itin), label)
  redis.call('ZREM', 'ledger:expiry', key)
  local tk = token_key(token)
  local ref = redis.call('HMGET', tk, 'itinerary', 'seat', 'expired_at')
  if ref[1] == itin and ref[2] == label and ref[3] == '0' then
    if tomb_at then
      redis.call('HSET', tk, 'expired_at', tomb_at)
      redis.call('ZADD', 'ledger:tombstones', tomb_at, token)
    else
      redis.call('DEL', tk)
    end
  end
end
`

// KEYS: seat, occupied, token
// ARGV: itinerary, label, holder, token, now, expires_at, capacity
var tryHoldScript = redis.NewScript(luaPrelude + `
local now = tonumber(ARGV[5])
local cur = redis.call('HMGET', KEYS[1], 'status', 'holder', 'token')
if cur[1] then
  if is_expired(KEYS[1], now) then
    free(KEYS[1], ARGV[5])
  elseif cur[2] == ARGV[3] and cur[3] == ARGV[4] then
    return hold_reply('OK', KEYS[1])
  else
    return {'UNAVAILABLE'}
  end
end

local ref = redis.call('HMGET', KEYS[3], 'expired_at', 'sold', 'expires_at')
if ref[1] == '0' and (ref[2] == '1' or now < tonumber(ref[3])) then
  return {'TOKEN_REUSED'}
end

local capacity = tonumber(ARGV[7])
if redis.call('SCARD', KEYS[2]) >= capacity then
  for _, label in ipairs(redis.call('SMEMBERS', KEYS[2])) do
    local key = seat_key(ARGV[1], label)
    if is_expired(key, now) then free(key, ARGV[5]) end
  end
  if redis.call('SCARD', KEYS[2]) >= capacity then
    return {'CAPACITY'}
  end
end

redis.call('HSET', KEYS[1],
  'itinerary', ARGV[1], 'seat', ARGV[2], 'holder', ARGV[3], 'token', ARGV[4],
  'status', 'HELD', 'created_at', ARGV[5], 'expires_at', ARGV[6], 'sold_at', '0')
redis.call('SADD', KEYS[2], ARGV[2])
redis.call('ZADD', 'ledger:expiry', ARGV[6], KEYS[1])
redis.call('DEL', KEYS[3])
redis.call('HSET', KEYS[3],
  'itinerary', ARGV[1], 'seat', ARGV[2], 'holder', ARGV[3],
  'expires_at', ARGV[6], 'sold', '0', 'expired_at', '0')
redis.call('ZREM', 'ledger:tombstones', ARGV[4])
return hold_reply('OK', KEYS[1])
`)

// KEYS: seat, token
// ARGV: itinerary, label, token, now
var confirmScript = redis.NewScript(luaPrelude + `
local now = tonumber(ARGV[4])
local cur = redis.call('HMGET', KEYS[1], 'status', 'token')
if cur[1] and cur[2] == ARGV[3] then
  if cur[1] == 'SOLD' then
    return hold_reply('OK', KEYS[1])
  end
  if is_expired(KEYS[1], now) then
    free(KEYS[1], ARGV[4])
    return {'EXPIRED'}
  end
  redis.call('HSET', KEYS[1], 'status', 'SOLD', 'sold_at', ARGV[4])
  redis.call('ZREM', 'ledger:expiry', KEYS[1])
  redis.call('HSET', KEYS[2], 'sold', '1')
  return hold_reply('OK', KEYS[1])
end

if cur[1] and is_expired(KEYS[1], now) then
  free(KEYS[1], ARGV[4])
  cur[1] = false
end
local ref = redis.call('HMGET', KEYS[2], 'itinerary', 'seat', 'expired_at')
if ref[1] == ARGV[1] and ref[2] == ARGV[2] and ref[3] and ref[3] ~= '0' then
  return {'EXPIRED'}
end
if cur[1] then
  return {'MISMATCH'}
end
return {'NOT_FOUND'}
`)

// KEYS: seat
// ARGV: token
var releaseScript = redis.NewScript(luaPrelude + `
local cur = redis.call('HMGET', KEYS[1], 'status', 'token')
if cur[1] == 'HELD' and cur[2] == ARGV[1] then
  free(KEYS[1], nil)
end
return {'OK'}
`)

// KEYS: seat
// ARGV: token（空なら任意の販売）
var cancelSaleScript = redis.NewScript(luaPrelude + `
local cur = redis.call('HMGET', KEYS[1], 'status', 'token')
if cur[1] ~= 'SOLD' or (ARGV[1] ~= '' and cur[2] ~= ARGV[1]) then
  return {'NOT_SOLD'}
end
free(KEYS[1], nil)
return {'OK'}
`)

// KEYS: seat, occupied, token
// ARGV: itinerary, label, holder, token, created_at, sold_at
var restoreSaleScript = redis.NewScript(luaPrelude + `
local cur = redis.call('HMGET', KEYS[1], 'status', 'token')
if cur[1] == 'SOLD' then
  if cur[2] == ARGV[4] then
    return {'OK'}
  end
  return {'ALREADY_SOLD'}
end
if cur[1] then
  free(KEYS[1], nil)
end
redis.call('HSET', KEYS[1],
  'itinerary', ARGV[1], 'seat', ARGV[2], 'holder', ARGV[3], 'token', ARGV[4],
  'status', 'SOLD', 'created_at', ARGV[5], 'expires_at', ARGV[5], 'sold_at', ARGV[6])
redis.call('SADD', KEYS[2], ARGV[2])
redis.call('DEL', KEYS[3])
redis.call('HSET', KEYS[3],
  'itinerary', ARGV[1], 'seat', ARGV[2], 'holder', ARGV[3],
  'expires_at', ARGV[5], 'sold', '1', 'expired_at', '0')
redis.call('ZREM', 'ledger:tombstones', ARGV[4])
return {'OK'}
`)

// KEYS: token
// ARGV: token, now
var lookupScript = redis.NewScript(luaPrelude + `
local now = tonumber(ARGV[2])
local ref = redis.call('HMGET', KEYS[1], 'itinerary', 'seat', 'expired_at')
if not ref[1] then
  return {'NOT_FOUND'}
end
if ref[3] ~= '0' then
  return {'EXPIRED'}
end
local key = seat_key(ref[1], ref[2])
local cur = redis.call('HMGET', key, 'status', 'token')
if not cur[1] or cur[2] ~= ARGV[1] then
  return {'NOT_FOUND'}
end
if is_expired(key, now) then
  free(key, ARGV[2])
  return {'EXPIRED'}
end
return hold_reply('OK', key)
`)

// KEYS: occupied
// ARGV: itinerary, now
// 戻り値: label, status, label, status, ...
var snapshotScript = redis.NewScript(luaPrelude + `
local now = tonumber(ARGV[2])
local out = {}
for _, label in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  local key = seat_key(ARGV[1], label)
  local status = redis.call('HGET', key, 'status')
  if not status then
    redis.call('SREM', KEYS[1], label)
  elseif is_expired(key, now) then
    free(key, ARGV[2])
  else
    table.insert(out, label)
    table.insert(out, status)
  end
end
return out
`)

// ARGV: now, horizon（これ以前に回収されたトークンを削除する）, limit
// 戻り値: {回収数, 処理数}
var sweepScript = redis.NewScript(luaPrelude + `
local now = tonumber(ARGV[1])
local due = redis.call('ZRANGEBYSCORE', 'ledger:expiry', '-inf', ARGV[1], 'LIMIT', '0', ARGV[3])
local reclaimed = 0
for _, key in ipairs(due) do
  if is_expired(key, now) then
    free(key, ARGV[1])
    reclaimed = reclaimed + 1
  else
    redis.call('ZREM', 'ledger:expiry', key)
  end
end

local horizon = tonumber(ARGV[2])
for _, token in ipairs(redis.call('ZRANGEBYSCORE', 'ledger:tombstones', '-inf', ARGV[2])) do
  local tk = token_key(token)
  local expired_at = redis.call('HGET', tk, 'expired_at')
  if expired_at and expired_at ~= '0' and tonumber(expired_at) <= horizon then
    redis.call('DEL', tk)
  end
  redis.call('ZREM', 'ledger:tombstones', token)
end
return {reclaimed, #due}
`)
