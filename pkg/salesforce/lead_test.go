package salesforce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLeadsByContact(t *testing.T) {
	t.Run("returns leads matching phones and emails", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, soql string, out any) error {
				assert.Contains(t, soql, "SELECT Id, LastName, Company")
				assert.Contains(t, soql, "Phone IN ('+15125550100', '+15125550101')")
				assert.Contains(t, soql, "Email IN ('info@acmeroofing.com')")
				assert.Contains(t, soql, " OR ")

				leads := out.(*[]Lead)
				*leads = []Lead{
					{ID: "00Qxx", Company: "Acme Roofing", Phone: "+15125550100"},
				}
				return nil
			},
		}

		leads, err := FindLeadsByContact(context.Background(), mock,
			[]string{"+15125550100", "+15125550101"},
			[]string{"info@acmeroofing.com"})
		require.NoError(t, err)
		require.Len(t, leads, 1)
		assert.Equal(t, "00Qxx", leads[0].ID)
		assert.Equal(t, "Acme Roofing", leads[0].Company)
	})

	t.Run("phones only omits email clause", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, soql string, out any) error {
				assert.Contains(t, soql, "Phone IN")
				assert.NotContains(t, soql, "Email IN")
				assert.NotContains(t, soql, " OR ")
				*out.(*[]Lead) = []Lead{}
				return nil
			},
		}

		leads, err := FindLeadsByContact(context.Background(), mock, []string{"+15125550100"}, nil)
		require.NoError(t, err)
		assert.Empty(t, leads)
	})

	t.Run("empty input skips the query", func(t *testing.T) {
		var called bool
		mock := &mockClient{
			queryFn: func(_ context.Context, _ string, _ any) error {
				called = true
				return nil
			},
		}

		leads, err := FindLeadsByContact(context.Background(), mock, nil, nil)
		require.NoError(t, err)
		assert.Nil(t, leads)
		assert.False(t, called)
	})

	t.Run("returns error on query failure", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, _ string, _ any) error {
				return errors.New("connection refused")
			},
		}

		leads, err := FindLeadsByContact(context.Background(), mock, []string{"+15125550100"}, nil)
		assert.Error(t, err)
		assert.Nil(t, leads)
		assert.Contains(t, err.Error(), "find leads by contact")
	})

	t.Run("escapes single quotes in values", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, soql string, out any) error {
				assert.Contains(t, soql, `o\'brien@example.com`)
				*out.(*[]Lead) = []Lead{}
				return nil
			},
		}

		_, err := FindLeadsByContact(context.Background(), mock, nil, []string{"o'brien@example.com"})
		require.NoError(t, err)
	})
}

func TestQuoteList(t *testing.T) {
	assert.Equal(t, "'a'", quoteList([]string{"a"}))
	assert.Equal(t, "'a', 'b'", quoteList([]string{"a", "b"}))
	assert.Equal(t, `'it\'s'`, quoteList([]string{"it's"}))
}
